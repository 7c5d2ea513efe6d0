package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	path := filepath.Join(dir, "jsn.log")

	w, err := NewDailyWriter(path, 14)
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(dir)
	require.NoError(t, err, "log directory created")

	now := time.Date(2025, 10, 19, 23, 59, 0, 0, time.Local)
	w.now = func() time.Time { return now }

	_, err = w.Write([]byte("first day\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("still first day\n"))
	require.NoError(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	now = now.Add(2 * time.Minute) // past midnight
	_, err = w.Write([]byte("second day\n"))
	require.NoError(t, err)

	files, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2, "previous day moved to a backup")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second day\n", string(data))
}

func TestDailyWriter_StaleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jsn.log")
	require.NoError(t, os.WriteFile(path, []byte("old run\n"), 0o600))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	w, err := NewDailyWriter(path, 14)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("new run\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new run\n", string(data))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestDailyWriter_SameDayAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jsn.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier today\n"), 0o600))

	w, err := NewDailyWriter(path, 14)
	require.NoError(t, err)
	_, err = w.Write([]byte("later today\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "earlier today\nlater today\n", string(data))
}
