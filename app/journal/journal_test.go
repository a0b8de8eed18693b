package journal

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, j.Close()) })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := makeTestJournal(t)

	j.Record("save", "a/b", "")
	j.Record("repair", "x/y", "/tmp/store/x/z")
	j.Record("remove", "a", "")

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// newest first
	assert.Equal(t, "remove", entries[0].Op)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "repair", entries[1].Op)
	assert.Equal(t, "/tmp/store/x/z", entries[1].Details)
	assert.Equal(t, "save", entries[2].Op)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestJournal_RecentLimit(t *testing.T) {
	j := makeTestJournal(t)

	for i := 0; i < 10; i++ {
		j.Record("save", fmt.Sprintf("job/%d", i), "")
	}

	entries, err := j.Recent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "job/9", entries[0].Key)

	entries, err = j.Recent(0) // default limit
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestJournal_Prune(t *testing.T) {
	j := makeTestJournal(t)

	j.Record("save", "old", "")
	// backdate the entry
	_, err := j.db.Exec("UPDATE operations SET created_at = ? WHERE key = ?",
		time.Now().Add(-48*time.Hour).Unix(), "old")
	require.NoError(t, err)
	j.Record("save", "fresh", "")

	n, err := j.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Key)
}

func TestJournal_BadLocation(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "no-such-dir", "x", "journal.db"))
	assert.Error(t, err)
}
