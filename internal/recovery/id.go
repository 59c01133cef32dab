package recovery

import (
	"strings"

	"github.com/google/uuid"
)

// newPointID returns a 16-character lowercase hex string, per spec.md
// §4.3 "ID generation": derived from a pseudo-random source (UUIDv4,
// the way github.com/google/uuid is used for task/run identity in the
// retrieved beemesh-beemesh repo) rather than from monotonic time, so
// concurrent callers within the same process don't collide.
func newPointID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:16]
}
