package recovery

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"kernelforge/internal/logging"
	"kernelforge/internal/types"
)

var defaultDummyState = []byte("kernelforge-dummy-state")

// Manager is the Recovery Manager (spec.md §4.3, C3).
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	state  ManagerState
	points map[string]*RecoveryPoint
	order  []string // insertion order, oldest first

	captureCB func() []byte
	restoreCB func([]byte) bool
	errorCB   func(string)
}

// New constructs a Manager in the Uninitialized state.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logging.Named("recovery"),
		state:  Uninitialized,
		points: make(map[string]*RecoveryPoint),
	}
}

// reportError logs msg and, if errCB is non-nil, invokes it with msg,
// isolated from panics. errCB must be a snapshot of m.errorCB taken
// while m.mu was held — reading the field directly here would race
// with SetErrorCallback once the caller has released the lock.
func (m *Manager) reportError(errCB func(string), msg string) {
	m.logger.Warn(msg)
	if errCB != nil {
		func() {
			defer func() { _ = recover() }()
			errCB(msg)
		}()
	}
}

// SetStateCaptureCallback installs the function used to capture state
// on CreateRecoveryPoint. If unset, a fixed dummy blob is captured.
func (m *Manager) SetStateCaptureCallback(f func() []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureCB = f
}

// SetStateRestoreCallback installs the function invoked with the
// restored bytes on RestoreFromPoint.
func (m *Manager) SetStateRestoreCallback(f func([]byte) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restoreCB = f
}

// SetErrorCallback installs the diagnostic sink for I/O and validation
// failures.
func (m *Manager) SetErrorCallback(f func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCB = f
}

// Initialize ensures storage_path exists, validates config, and is
// idempotent. Returns false on invalid config or I/O failure.
func (m *Manager) Initialize() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Initialized || m.state == RecoveryInProgress {
		return true
	}
	if m.state == ShutDown {
		m.reportError(m.errorCB, "cannot initialize a shut-down recovery manager")
		return false
	}

	if err := m.cfg.Validate(); err != nil {
		m.reportError(m.errorCB, err.Error())
		return false
	}
	if err := os.MkdirAll(m.cfg.PointConfig.StoragePath, 0o755); err != nil {
		m.reportError(m.errorCB, "creating storage path: "+err.Error())
		return false
	}

	m.state = Initialized
	return true
}

func (m *Manager) isUsable() bool {
	return m.state == Initialized || m.state == RecoveryInProgress
}

// CreateRecoveryPoint captures state via the installed capture callback,
// computes a checksum when validation is enabled, optionally compresses
// it, persists it, and updates the in-memory index. Returns "" on
// failure, leaving the index unchanged (spec.md §4.3 "Failure
// semantics").
func (m *Manager) CreateRecoveryPoint() string {
	m.mu.Lock()
	if !m.isUsable() {
		errCB := m.errorCB
		m.mu.Unlock()
		m.reportError(errCB, "create_recovery_point: "+types.ErrNotInitialized.Error())
		return ""
	}
	captureCB := m.captureCB
	m.mu.Unlock()

	var state []byte
	if captureCB != nil {
		state = safeCapture(captureCB)
	} else {
		state = defaultDummyState
	}

	return m.createPoint(state)
}

// CreatePointFromBytes persists a recovery point for caller-supplied
// bytes directly, bypassing the installed capture callback. Used by
// kernel variants that checkpoint per-task data rather than a single
// process-wide snapshot.
func (m *Manager) CreatePointFromBytes(state []byte) string {
	m.mu.Lock()
	if !m.isUsable() {
		errCB := m.errorCB
		m.mu.Unlock()
		m.reportError(errCB, "create_recovery_point: "+types.ErrNotInitialized.Error())
		return ""
	}
	m.mu.Unlock()
	return m.createPoint(state)
}

func (m *Manager) createPoint(state []byte) string {
	checksum := ""
	if m.cfg.EnableStateValidation {
		sum := sha256.Sum256(state)
		checksum = hex.EncodeToString(sum[:])
	}

	point := RecoveryPoint{
		Timestamp:    time.Now(),
		State:        state,
		Size:         uint64(len(state)),
		IsConsistent: true,
		Checksum:     checksum,
		Metadata:     map[string]string{},
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := newPointID()
	for _, exists := m.points[id]; exists; _, exists = m.points[id] {
		id = newPointID()
	}
	point.ID = id

	if err := writePoint(m.cfg.PointConfig, point); err != nil {
		m.reportError(m.errorCB, "persisting recovery point: "+err.Error())
		return ""
	}

	stored := point
	m.points[id] = &stored
	m.order = append(m.order, id)
	m.evictOldLocked()

	return id
}

func safeCapture(cb func() []byte) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			out = defaultDummyState
		}
	}()
	return cb()
}

// evictOldLocked drops points per spec.md §4.3's cleanup rule. Caller
// must hold m.mu.
func (m *Manager) evictOldLocked() {
	points := make([]RecoveryPoint, 0, len(m.points))
	for _, p := range m.points {
		points = append(points, *p)
	}
	evict := selectEvictions(points, m.cfg.MaxPoints, m.cfg.PointConfig.RetentionPeriod, time.Now())
	if len(evict) == 0 {
		return
	}
	evictSet := make(map[string]bool, len(evict))
	for _, id := range evict {
		evictSet[id] = true
		delete(m.points, id)
		_ = deletePoint(m.cfg.PointConfig, id)
	}
	kept := m.order[:0:0]
	for _, id := range m.order {
		if !evictSet[id] {
			kept = append(kept, id)
		}
	}
	m.order = kept
}

// RestoreFromPoint loads a point, verifies its checksum if validation is
// enabled, and invokes the restore callback with the decoded bytes.
func (m *Manager) RestoreFromPoint(id string) bool {
	m.mu.Lock()
	if !m.isUsable() {
		errCB := m.errorCB
		m.mu.Unlock()
		m.reportError(errCB, "restore_from_point: "+types.ErrNotInitialized.Error())
		return false
	}
	m.state = RecoveryInProgress
	restoreCB := m.restoreCB
	validate := m.cfg.EnableStateValidation
	cfg := m.cfg.PointConfig
	errCB := m.errorCB
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.state == RecoveryInProgress {
			m.state = Initialized
		}
		m.mu.Unlock()
	}()

	point, err := readPoint(cfg, id, validate)
	if err != nil {
		m.reportError(errCB, "loading recovery point: "+err.Error())
		return false
	}

	if restoreCB == nil {
		m.reportError(errCB, "restore_from_point: no restore callback installed")
		return false
	}

	ok := safeRestore(restoreCB, point.State)
	if !ok {
		m.reportError(errCB, "restore callback rejected point "+id)
		return false
	}
	return true
}

func safeRestore(cb func([]byte) bool, data []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return cb(data)
}

// DeleteRecoveryPoint removes a point from memory and from disk.
func (m *Manager) DeleteRecoveryPoint(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.points[id]; !ok {
		return
	}
	delete(m.points, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if err := deletePoint(m.cfg.PointConfig, id); err != nil {
		m.reportError(m.errorCB, "deleting recovery point: "+err.Error())
	}
}

// ValidateState returns true iff validation is disabled, or bytes is
// non-empty and a checksum can be computed for it.
func (m *Manager) ValidateState(data []byte) bool {
	m.mu.RLock()
	enabled := m.cfg.EnableStateValidation
	m.mu.RUnlock()
	if !enabled {
		return true
	}
	return len(data) > 0
}

// ListPoints returns a snapshot of the in-memory index, oldest first.
func (m *Manager) ListPoints() []RecoveryPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecoveryPoint, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.points[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Shutdown transitions the manager to ShutDown. Idempotent.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = ShutDown
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() ManagerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
