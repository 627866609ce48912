package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type note struct {
	Owner string            `json:"ownerId"`
	Tags  []string          `json:"tags"`
	Count int               `json:"count"`
	Perms map[string]string `json:"perms,omitempty"`
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var got note
	err := s.Get(ctx, "notes/a", &got)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "notes/a", note{Owner: "u1", Count: 2}))
	require.NoError(t, s.Get(ctx, "notes/a", &got))
	assert.Equal(t, "u1", got.Owner)
	assert.Equal(t, 2, got.Count)

	require.NoError(t, s.Delete(ctx, "notes/a"))
	assert.ErrorIs(t, s.Get(ctx, "notes/a", &got), ErrNotFound)
	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, "notes/a"))
}

func TestSQLiteRejectsCollectionPath(t *testing.T) {
	s := newTestStore(t)
	err := s.Set(context.Background(), "notes", note{})
	assert.Error(t, err)
}

func TestSQLiteQueries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "users/u1/outgoing/s1", note{Owner: "u1", Tags: []string{"x"}}))
	require.NoError(t, s.Set(ctx, "users/u2/outgoing/s2", note{Owner: "u2", Tags: []string{"x", "y"}}))
	require.NoError(t, s.Set(ctx, "users/u2/incoming/s3", note{Owner: "u1"}))
	require.NoError(t, s.Set(ctx, "users/u1", note{Owner: "u1"}))

	docs, err := s.Query(ctx, Query{Collection: "users/u2/outgoing"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s2", docs[0].ID)
	assert.Equal(t, "users/u2/outgoing/s2", docs[0].Path)

	docs, err = s.Query(ctx, Query{Group: "outgoing"}.Where("ownerId", OpEqual, "u1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1", docs[0].ID)

	docs, err = s.Query(ctx, Query{Group: "outgoing"}.Where("tags", OpArrayContains, "y"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	var n note
	require.NoError(t, docs[0].DataTo(&n))
	assert.Equal(t, "u2", n.Owner)

	docs, err = s.Query(ctx, Query{Collection: "users"})
	require.NoError(t, err)
	assert.Len(t, docs, 1, "subcollection documents are not part of the parent collection")
}

func TestSQLiteApply(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "notes/a", note{Owner: "u1", Tags: []string{"u1", "u2", "u3"}, Perms: map[string]string{"u1": "owner", "u2": "edit"}}))
	require.NoError(t, s.Set(ctx, "notes/b", note{Owner: "u2"}))

	err := s.Apply(ctx, []Mutation{
		ArrayRemove("notes/a", "tags", "u2"),
		DeleteField("notes/a", "perms.u2"),
		SetField("notes/a", "perms.u3", "edit"),
		DeleteDoc("notes/b"),
		ArrayRemove("notes/missing", "tags", "u2"),
		SetField("notes/c", "count", 7),
	})
	require.NoError(t, err)

	var a note
	require.NoError(t, s.Get(ctx, "notes/a", &a))
	assert.Equal(t, []string{"u1", "u3"}, a.Tags)
	assert.Equal(t, map[string]string{"u1": "owner", "u3": "edit"}, a.Perms)

	var b note
	assert.ErrorIs(t, s.Get(ctx, "notes/b", &b), ErrNotFound)
	assert.ErrorIs(t, s.Get(ctx, "notes/missing", &b), ErrNotFound)

	var c note
	require.NoError(t, s.Get(ctx, "notes/c", &c))
	assert.Equal(t, 7, c.Count)
}

func TestSQLiteTransaction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "notes/a", note{Count: 1}))

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Set("notes/a", note{Count: 99}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n note
	require.NoError(t, s.Get(ctx, "notes/a", &n))
	assert.Equal(t, 1, n.Count, "failed transaction must roll back")

	err = s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var cur note
		if err := tx.Get(ctx, "notes/a", &cur); err != nil {
			return err
		}
		cur.Count++
		if err := tx.Set("notes/a", cur); err != nil {
			return err
		}
		return tx.Get(ctx, "notes/a", &cur)
	})
	assert.ErrorIs(t, err, errReadAfterWrite)

	err = s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var cur note
		if err := tx.Get(ctx, "notes/a", &cur); err != nil {
			return err
		}
		cur.Count++
		return tx.Set("notes/a", cur)
	})
	require.NoError(t, err)
	require.NoError(t, s.Get(ctx, "notes/a", &n))
	assert.Equal(t, 2, n.Count)
}

type recorder[T any] struct {
	mu  sync.Mutex
	got []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.got...)
}

func TestSQLiteWatchDocument(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "watch.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder[int]{}
	done := make(chan error, 1)
	go func() {
		done <- s.WatchDocument(ctx, "notes/a", func(doc *Document) {
			if doc == nil {
				rec.add(-1)
				return
			}
			var n note
			if err := doc.DataTo(&n); err == nil {
				rec.add(n.Count)
			}
		})
	}()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Set(ctx, "notes/a", note{Count: 1}))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Set(ctx, "notes/other", note{Count: 5}))
	require.NoError(t, s.Delete(ctx, "notes/a"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int{-1, 1, -1}, rec.snapshot())
}

func TestSQLiteWatchQuery(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "watch.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder[int]{}
	done := make(chan error, 1)
	go func() {
		done <- s.WatchQuery(ctx, Query{Collection: "users/u1/profiles"}, func(docs []Document) {
			rec.add(len(docs))
		})
	}()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Set(ctx, "users/u1/profiles/p1", note{}))
	require.Eventually(t, func() bool {
		got := rec.snapshot()
		return got[len(got)-1] == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Apply(ctx, []Mutation{SetField("users/u1/profiles/p2", "count", 1)}))
	require.Eventually(t, func() bool {
		got := rec.snapshot()
		return got[len(got)-1] == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSQLiteCloseStopsWatchers(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "close.db"))
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan error, 1)
	var once sync.Once
	go func() {
		done <- s.WatchDocument(context.Background(), "notes/a", func(*Document) { once.Do(func() { close(started) }) })
	}()
	<-started
	require.NoError(t, s.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after Close")
	}
}
