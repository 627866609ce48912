package db

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmulatorStore connects to the Firestore emulator, skipping when it is not running.
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "demo-studentkit")
	require.NoError(t, err)
	s := NewFirestoreStore(client)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFirestoreStoreRoundTrip(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	root := "tests/" + uuid.NewString()

	require.NoError(t, s.Set(ctx, root+"/notes/a", map[string]any{"ownerId": "u1", "tags": []string{"x", "y"}}))
	docs, err := s.Query(ctx, Query{Collection: root + "/notes"}.Where("tags", OpArrayContains, "y"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, root+"/notes/a", docs[0].Path)

	require.NoError(t, s.Apply(ctx, []Mutation{
		ArrayRemove(root+"/notes/a", "tags", "y"),
		DeleteField(root+"/notes/missing", "tags"),
	}))
	var got map[string]any
	require.NoError(t, s.Get(ctx, root+"/notes/a", &got))
	assert.Equal(t, []any{"x"}, got["tags"])

	require.NoError(t, s.Delete(ctx, root+"/notes/a"))
	assert.ErrorIs(t, s.Get(ctx, root+"/notes/a", &got), ErrNotFound)
}

func TestRelativePath(t *testing.T) {
	assert.Equal(t, "users/u1/profiles/p1", relativePath("projects/p/databases/(default)/documents/users/u1/profiles/p1"))
	assert.Equal(t, "users/u1", relativePath("users/u1"))
}

func TestMergeNested(t *testing.T) {
	out := map[string]any{}
	mergeNested(out, "permissions.u1", "edit")
	mergeNested(out, "permissions.u2", "read")
	mergeNested(out, "count", 1)
	assert.Equal(t, map[string]any{
		"permissions": map[string]any{"u1": "edit", "u2": "read"},
		"count":       1,
	}, out)
}

func TestGroupMutationsOneWritePerDocument(t *testing.T) {
	const collab = "collaborativeProfiles/p1"
	writes, err := groupMutations([]Mutation{
		ArrayRemove(collab, "collaborators", "u1"),
		DeleteField(collab, "permissions.u1"),
		DeleteDoc("users/u1/outgoingShares/s1"),
		DeleteDoc("users/u1/outgoingShares/s1"),
		SetField("users/u2", "prefs.theme", "dark"),
		DeleteField("users/u2", "prefs.term"),
		SetField("users/u3", "name", "a"),
		DeleteDoc("users/u3"),
	})
	require.NoError(t, err)
	require.Len(t, writes, 4)

	got := writes[0]
	assert.Equal(t, collab, got.path)
	assert.False(t, got.delete)
	assert.False(t, got.create)
	assert.Equal(t, []firestore.Update{
		{Path: "collaborators", Value: firestore.ArrayRemove("u1")},
		{Path: "permissions.u1", Value: firestore.Delete},
	}, got.updates())

	assert.True(t, writes[1].delete)
	assert.Equal(t, "users/u1/outgoingShares/s1", writes[1].path)

	assert.True(t, writes[2].create)
	assert.Equal(t, map[string]any{
		"prefs": map[string]any{"theme": "dark", "term": firestore.Delete},
	}, writes[2].data())

	assert.True(t, writes[3].delete, "a delete supersedes field writes on the same document")
}

func TestGroupMutationsLaterFieldWriteWins(t *testing.T) {
	writes, err := groupMutations([]Mutation{
		ArrayRemove("docs/a", "tags", "x"),
		ArrayRemove("docs/a", "tags", "y"),
		SetField("docs/a", "name", "old"),
		DeleteField("docs/a", "name"),
	})
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, []firestore.Update{
		{Path: "tags", Value: firestore.ArrayRemove("x", "y")},
		{Path: "name", Value: firestore.Delete},
	}, writes[0].updates())
}

func TestGroupMutationsRejectsUnknownKind(t *testing.T) {
	_, err := groupMutations([]Mutation{{Kind: MutationKind(99), Path: "docs/a"}})
	require.Error(t, err)
}

func TestFirestoreStoreApplyFoldsWritesToOneDocument(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	path := "tests/" + uuid.NewString()

	require.NoError(t, s.Set(ctx, path, map[string]any{
		"collaborators": []string{"u1", "u2"},
		"permissions":   map[string]any{"u1": "edit", "u2": "edit"},
	}))
	require.NoError(t, s.Apply(ctx, []Mutation{
		ArrayRemove(path, "collaborators", "u1"),
		DeleteField(path, "permissions.u1"),
	}))

	var got map[string]any
	require.NoError(t, s.Get(ctx, path, &got))
	assert.Equal(t, []any{"u2"}, got["collaborators"])
	assert.Equal(t, map[string]any{"u2": "edit"}, got["permissions"])
}
