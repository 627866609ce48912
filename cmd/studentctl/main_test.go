package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/config"
	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/db"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGPACommand(t *testing.T) {
	in := `[{"name":"Sem 1","subjects":[{"subjectName":"Maths","grade":9,"credit":4},{"subjectName":"Lab","grade":8,"credit":2}]}]`
	out, err := runCmd(t, in, "gpa")
	require.NoError(t, err)
	assert.Contains(t, out, "Sem 1: 8.67 (6 credits)")
	assert.Contains(t, out, "CGPA: 8.67")

	_, err = runCmd(t, `[{"subjects":[{"subjectName":"Bad","grade":12,"credit":4}]}]`, "gpa")
	assert.Error(t, err)
}

func TestCalculatorCommands(t *testing.T) {
	out, err := runCmd(t, "", "det", "1,2;3,4")
	require.NoError(t, err)
	assert.Equal(t, "-2\n", out)

	_, err = runCmd(t, "", "det", "1,x;3,4")
	assert.Error(t, err)

	out, err = runCmd(t, "", "base", "255", "--to", "16")
	require.NoError(t, err)
	assert.Equal(t, "FF\n", out)

	out, err = runCmd(t, "", "base", "ff", "--from", "16")
	require.NoError(t, err)
	assert.Contains(t, out, "base 2  11111111")

	out, err = runCmd(t, "", "prime", "84")
	require.NoError(t, err)
	assert.Equal(t, "84 is not prime: 2 x 2 x 3 x 7\n", out)

	out, err = runCmd(t, "", "prime", "97", "--json")
	require.NoError(t, err)
	var prime struct {
		IsPrime bool `json:"isPrime"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &prime))
	assert.True(t, prime.IsPrime)

	out, err = runCmd(t, "", "motion", "--distance", "120", "--time", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "speed:    60 km/h")

	_, err = runCmd(t, "", "motion", "--distance", "120")
	assert.Error(t, err)
}

func TestImportLegacyCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("GIN_MODE", "release")
	t.Setenv("STORE_DRIVER", config.StoreSQLite)
	t.Setenv("SQLITE_PATH", dbPath)
	t.Setenv("FIREBASE_PROJECT_ID", "")
	t.Setenv("LOG_LEVEL", "error")

	dump := `{"gpaProfiles":"[{\"id\":1700000000000,\"name\":\"Default Profile\",\"isDefault\":true,\"semesters\":[{\"id\":1,\"name\":\"Sem 1\",\"subjects\":[{\"id\":11,\"subjectName\":\"Maths\",\"grade\":\"8\",\"credit\":4}]}]}]","theme":"dark"}`
	out, err := runCmd(t, dump, "import-legacy", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 profile(s) for u1")

	_, err = runCmd(t, dump, "import-legacy")
	assert.Error(t, err)

	store, err := db.NewSQLiteStore(context.Background(), dbPath)
	require.NoError(t, err)
	defer store.Close()
	profiles := core.NewProfileService(db.NewProfileRepository(store), db.NewSharedProfileRepository(store),
		db.NewUserRepository(store), zap.NewNop(), nil, core.ProfileServiceOptions{})
	defer profiles.Close()

	list, err := profiles.GetProfiles(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1700000000000", list[0].ID)
	assert.True(t, list[0].IsDefault)
}
