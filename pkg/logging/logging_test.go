package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console and file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "jsn.log")
		console := &bytes.Buffer{}
		l, err := New(Options{File: path, MaxBackups: 14, NoColor: true, Console: console, Secrets: []string{"s3cret", ""}})
		require.NoError(t, err)

		l.Logf("[INFO] connecting with password s3cret")
		l.Logf("[DEBUG] hidden without debug")
		l.Logf("[WARN] something odd")
		require.NoError(t, l.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		for _, out := range []string{console.String(), string(data)} {
			assert.Contains(t, out, "[INFO]")
			assert.Contains(t, out, "connecting with password")
			assert.NotContains(t, out, "s3cret")
			assert.NotContains(t, out, "hidden without debug")
			assert.Contains(t, out, "something odd")
		}
		assert.NotContains(t, string(data), "\x1b[", "no color codes in file")
	})

	t.Run("debug enabled", func(t *testing.T) {
		console := &bytes.Buffer{}
		l, err := New(Options{Debug: true, NoColor: true, Console: console})
		require.NoError(t, err)
		l.Logf("[DEBUG] visible in debug")
		require.NoError(t, l.Close())
		assert.Contains(t, console.String(), "visible in debug")
	})

	t.Run("debug caller is the call site", func(t *testing.T) {
		console := &bytes.Buffer{}
		l, err := New(Options{Debug: true, NoColor: true, Console: console})
		require.NoError(t, err)
		l.Logf("[INFO] hello")
		require.NoError(t, l.Close())
		assert.Contains(t, console.String(), "{logging.TestNew.")
		assert.NotContains(t, console.String(), "(*Logger).Logf")
	})

	t.Run("bad log directory", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
		_, err := New(Options{File: filepath.Join(blocker, "sub", "jsn.log")})
		require.Error(t, err)
	})
}
