package recovery

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// pointPath returns the on-disk path for a point id.
func pointPath(storagePath, id string) string {
	return filepath.Join(storagePath, id+".json")
}

// writePoint atomically persists a RecoveryPoint, applying compression
// per PointConfig. Grounded in the teacher's writeFileAtomicDurable
// (internal/recovery/state/store.go): write to a temp file in the same
// directory, fsync, rename, fsync the directory.
func writePoint(cfg PointConfig, p RecoveryPoint) error {
	stateBytes := p.State
	compressed := false
	if cfg.EnableCompression {
		if c, ok := CompressIfSmaller(stateBytes); ok {
			stateBytes = c
			compressed = true
		}
	}

	doc := onDiskPoint{
		ID:           p.ID,
		Timestamp:    p.Timestamp.UnixMilli(),
		State:        base64.StdEncoding.EncodeToString(stateBytes),
		Size:         p.Size,
		IsConsistent: p.IsConsistent,
		Checksum:     p.Checksum,
		Metadata:     p.Metadata,
		Compressed:   compressed,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recovery point: %w", err)
	}

	return writeFileAtomicDurable(pointPath(cfg.StoragePath, p.ID), data, 0o644)
}

// readPoint loads and fully decodes a point from disk, verifying its
// checksum when validate is true.
func readPoint(cfg PointConfig, id string, validate bool) (RecoveryPoint, error) {
	data, err := os.ReadFile(pointPath(cfg.StoragePath, id))
	if err != nil {
		return RecoveryPoint{}, fmt.Errorf("reading recovery point: %w", err)
	}

	var doc onDiskPoint
	if err := json.Unmarshal(data, &doc); err != nil {
		return RecoveryPoint{}, fmt.Errorf("parsing recovery point: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(doc.State)
	if err != nil {
		return RecoveryPoint{}, fmt.Errorf("decoding recovery point state: %w", err)
	}

	state := raw
	if doc.Compressed {
		state, err = Decompress(raw)
		if err != nil {
			return RecoveryPoint{}, fmt.Errorf("decompressing recovery point state: %w", err)
		}
	}

	if validate {
		sum := sha256.Sum256(state)
		if hex.EncodeToString(sum[:]) != doc.Checksum {
			return RecoveryPoint{}, fmt.Errorf("checksum mismatch for point %s", id)
		}
	}

	return RecoveryPoint{
		ID:           doc.ID,
		Timestamp:    msToTime(doc.Timestamp),
		State:        state,
		Size:         doc.Size,
		IsConsistent: doc.IsConsistent,
		Checksum:     doc.Checksum,
		Metadata:     doc.Metadata,
	}, nil
}

// deletePoint removes a point's file from disk. Missing files are not
// an error (already-absent is the desired end state).
func deletePoint(cfg PointConfig, id string) error {
	err := os.Remove(pointPath(cfg.StoragePath, id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	// data is already an in-memory []byte, so write it directly rather
	// than routing it through an io.Copy/bytes.Reader pair.
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
