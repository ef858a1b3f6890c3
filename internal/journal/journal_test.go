package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prestige-dev/prestige/internal/directive"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndReadOperations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ops := []*directive.Operation{
		{Kind: directive.KindWrite, State: directive.StateFinished, Position: 0, Path: "src/app.ts"},
		{Kind: directive.KindRename, State: directive.StateFinished, Position: 40, From: "old.ts", To: "new.ts"},
		{Kind: directive.KindAddDependency, State: directive.StateFinished, Position: 90, Packages: []string{"lodash", "zod"}},
	}
	for _, op := range ops {
		require.NoError(t, db.RecordOperation(ctx, "session-1", op))
	}

	entries, err := db.Operations(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "write", entries[0].Kind)
	assert.Equal(t, "src/app.ts", entries[0].Path)
	assert.Equal(t, "old.ts", entries[1].FromPath)
	assert.Equal(t, "new.ts", entries[1].ToPath)
	assert.Equal(t, []string{"lodash", "zod"}, entries[2].Packages)

	// Other sessions stay isolated.
	other, err := db.Operations(ctx, "session-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordAndReadFixAttempts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordFixAttempt(ctx, "session-1", 1, 3, 1, ""))
	require.NoError(t, db.RecordFixAttempt(ctx, "session-1", 2, 1, 0, "converged"))

	entries, err := db.FixAttempts(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Attempt)
	assert.Equal(t, 3, entries[0].ErrorsBefore)
	assert.Equal(t, 1, entries[0].ErrorsAfter)
	assert.Equal(t, "converged", entries[1].Outcome)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	op := &directive.Operation{Kind: directive.KindDelete, State: directive.StateFinished, Path: "junk.ts"}
	require.NoError(t, db.RecordOperation(ctx, "s", op))
	require.NoError(t, db.Close())

	db2, err := New(path)
	require.NoError(t, err)
	defer db2.Close()

	entries, err := db2.Operations(ctx, "s")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "delete", entries[0].Kind)
}
