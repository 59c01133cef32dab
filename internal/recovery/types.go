// Package recovery implements the Recovery Manager (spec.md §4.3, C3):
// byte-serialized state snapshots ("recovery points"), persisted as
// checksummed, optionally RLE-compressed JSON documents.
//
// Grounded in the teacher's internal/recovery/state.Store (atomic
// temp-file + rename + fsync writes) and state.CheckpointValidator
// (validate-then-persist pipeline returning errors.Join'd failures).
package recovery

import (
	"time"

	"kernelforge/internal/types"
)

// RecoveryPoint is a persisted, checksummed snapshot of caller-provided
// state bytes (spec.md §3).
type RecoveryPoint struct {
	ID           string
	Timestamp    time.Time
	State        []byte
	Size         uint64
	IsConsistent bool
	Checksum     string
	Metadata     map[string]string
}

// PointConfig configures how a single recovery point is stored.
type PointConfig struct {
	MaxSize           uint64
	EnableCompression bool
	StoragePath       string
	RetentionPeriod   time.Duration
}

// Config configures a Manager.
type Config struct {
	MaxPoints             int
	CheckpointInterval    time.Duration
	EnableAutoRecovery    bool
	EnableStateValidation bool
	PointConfig           PointConfig
	LogPath               string
	MaxLogSize            int64
	MaxLogFiles           int
}

// Validate checks the structural requirements a Manager needs before it
// can initialize.
func (c Config) Validate() error {
	if c.MaxPoints <= 0 {
		return types.Wrap(types.ErrInvalidConfig, "max_points must be > 0")
	}
	if c.PointConfig.StoragePath == "" {
		return types.Wrap(types.ErrInvalidConfig, "point_config.storage_path is required")
	}
	if c.PointConfig.MaxSize == 0 {
		return types.Wrap(types.ErrInvalidConfig, "point_config.max_size must be > 0")
	}
	return nil
}

// ManagerState is the recovery manager's lifecycle state machine
// (spec.md §4.3 "State machine").
type ManagerState string

const (
	Uninitialized       ManagerState = "uninitialized"
	Initialized         ManagerState = "initialized"
	RecoveryInProgress  ManagerState = "recovery_in_progress"
	ShutDown            ManagerState = "shut_down"
)

// onDiskPoint is the exact JSON document shape from spec.md §6, plus a
// "compressed" flag. The flag is an additive field: §6 fixes "state" as
// base64 of the (possibly compressed) bytes and "checksum" as the
// SHA-256 of the pre-compression bytes, but never says how a reader is
// meant to know whether "state" needs RLE-decoding first. Since RLE's
// own grammar does not self-describe (a raw, never-compressed byte
// stream containing a standalone 0x00 is indistinguishable from an
// escape sequence), persisting that bit is the only way to make the
// documented format actually round-trip; see DESIGN.md.
type onDiskPoint struct {
	ID           string            `json:"id"`
	Timestamp    int64             `json:"timestamp"`
	State        string            `json:"state"`
	Size         uint64            `json:"size"`
	IsConsistent bool              `json:"isConsistent"`
	Checksum     string            `json:"checksum"`
	Metadata     map[string]string `json:"metadata"`
	Compressed   bool              `json:"compressed"`
}
