package recovery

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		MaxPoints:             10,
		CheckpointInterval:    time.Minute,
		EnableAutoRecovery:    true,
		EnableStateValidation: true,
		PointConfig: PointConfig{
			MaxSize:           1 << 20,
			EnableCompression: true,
			StoragePath:       dir,
			RetentionPeriod:   time.Hour,
		},
	}
}

// S5: recovery round-trip.
func TestCreateAndRestoreRoundTrip(t *testing.T) {
	m := New(testConfig(t))
	require.True(t, m.Initialize())

	want := []byte("the quick brown fox jumps over the lazy dog 0000000")
	m.SetStateCaptureCallback(func() []byte { return want })

	var got []byte
	m.SetStateRestoreCallback(func(b []byte) bool {
		got = b
		return true
	})

	id := m.CreateRecoveryPoint()
	require.NotEmpty(t, id)

	ok := m.RestoreFromPoint(id)
	assert.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, Initialized, m.State())
}

// P5: checksum round-trip — tampering with the on-disk file must make
// RestoreFromPoint fail rather than hand the callback corrupted bytes.
func TestRestoreDetectsChecksumMismatch(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	require.True(t, m.Initialize())
	m.SetStateCaptureCallback(func() []byte { return []byte("original payload") })
	m.SetStateRestoreCallback(func([]byte) bool { return true })

	id := m.CreateRecoveryPoint()
	require.NotEmpty(t, id)

	path := pointPath(cfg.PointConfig.StoragePath, id)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc onDiskPoint
	require.NoError(t, json.Unmarshal(data, &doc))
	doc.State = base64.StdEncoding.EncodeToString([]byte("tampered payload"))
	doc.Compressed = false
	data, err = json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	ok := m.RestoreFromPoint(id)
	assert.False(t, ok)
}

func TestInitializeIsIdempotent(t *testing.T) {
	m := New(testConfig(t))
	assert.True(t, m.Initialize())
	assert.True(t, m.Initialize())
	assert.Equal(t, Initialized, m.State())
}

func TestOperationsBeforeInitializeFail(t *testing.T) {
	m := New(testConfig(t))
	assert.Equal(t, "", m.CreateRecoveryPoint())
	assert.False(t, m.RestoreFromPoint("nonexistent"))
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	m := New(Config{})
	assert.False(t, m.Initialize())
	assert.Equal(t, Uninitialized, m.State())
}

func TestShutdownIsIdempotentAndBlocksReinitialize(t *testing.T) {
	m := New(testConfig(t))
	require.True(t, m.Initialize())
	m.Shutdown()
	m.Shutdown()
	assert.Equal(t, ShutDown, m.State())
	assert.False(t, m.Initialize())
}

func TestDeleteRecoveryPointRemovesFromDiskAndIndex(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	require.True(t, m.Initialize())
	m.SetStateCaptureCallback(func() []byte { return []byte("x") })

	id := m.CreateRecoveryPoint()
	require.NotEmpty(t, id)
	require.FileExists(t, pointPath(cfg.PointConfig.StoragePath, id))

	m.DeleteRecoveryPoint(id)
	assert.NoFileExists(t, pointPath(cfg.PointConfig.StoragePath, id))
	assert.Len(t, m.ListPoints(), 0)

	// deleting again is a no-op, not an error path the caller can observe
	m.DeleteRecoveryPoint(id)
}

func TestCreateRecoveryPointFailureLeavesIndexUnchanged(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	require.True(t, m.Initialize())
	m.SetStateCaptureCallback(func() []byte { return []byte("a") })

	id := m.CreateRecoveryPoint()
	require.NotEmpty(t, id)
	before := m.ListPoints()

	// Replace the storage directory with a regular file to force a
	// persistence failure on the next point (a permission change alone
	// does not stop a process running as root); the in-memory index must
	// not gain a dangling entry.
	require.NoError(t, os.RemoveAll(cfg.PointConfig.StoragePath))
	require.NoError(t, os.WriteFile(cfg.PointConfig.StoragePath, []byte("not a directory"), 0o644))

	failed := m.CreateRecoveryPoint()
	assert.Equal(t, "", failed)
	assert.Equal(t, before, m.ListPoints())
}

func TestEvictionRespectsMaxPoints(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxPoints = 3
	m := New(cfg)
	require.True(t, m.Initialize())
	m.SetStateCaptureCallback(func() []byte { return []byte("payload") })

	var ids []string
	for i := 0; i < 5; i++ {
		id := m.CreateRecoveryPoint()
		require.NotEmpty(t, id)
		ids = append(ids, id)
		time.Sleep(time.Millisecond)
	}

	points := m.ListPoints()
	assert.LessOrEqual(t, len(points), cfg.MaxPoints)
	// the oldest two should have been evicted, both in memory and on disk
	assert.NoFileExists(t, pointPath(cfg.PointConfig.StoragePath, ids[0]))
	assert.NoFileExists(t, pointPath(cfg.PointConfig.StoragePath, ids[1]))
	assert.FileExists(t, pointPath(cfg.PointConfig.StoragePath, ids[len(ids)-1]))
}

func TestValidateStateHonorsConfigFlag(t *testing.T) {
	cfg := testConfig(t)
	cfg.EnableStateValidation = false
	m := New(cfg)
	assert.True(t, m.ValidateState(nil))

	m2 := New(testConfig(t))
	assert.False(t, m2.ValidateState(nil))
	assert.True(t, m2.ValidateState([]byte("x")))
}

func TestErrorCallbackReceivesDiagnostics(t *testing.T) {
	m := New(testConfig(t))
	var messages []string
	m.SetErrorCallback(func(msg string) { messages = append(messages, msg) })

	m.CreateRecoveryPoint() // before Initialize
	assert.NotEmpty(t, messages)
}
