package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "mfareport.lock")

	l, err := Acquire(path, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	assert.Equal(t, strconv.Itoa(os.Getpid()), Holder(path))

	_, err = Acquire(path, time.Hour)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())
	again, err := Acquire(path, time.Hour)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireTakesOverStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mfareport.lock")
	require.NoError(t, os.WriteFile(path, []byte("999999\n2020-01-01T00:00:00Z\n"), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	l, err := Acquire(path, time.Hour)
	require.NoError(t, err)
	defer l.Release()
	assert.Equal(t, strconv.Itoa(os.Getpid()), Holder(path))
}

func TestAcquireWithoutStaleTimeoutNeverTakesOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mfareport.lock")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err := Acquire(path, 0)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, "unknown", Holder(path))
}

func TestReleaseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mfareport.lock")
	l, err := Acquire(path, time.Hour)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestHolderMissingFile(t *testing.T) {
	assert.Equal(t, "unknown", Holder(filepath.Join(t.TempDir(), "absent")))
}
