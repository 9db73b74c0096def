// Package xid mints prefixed identifiers for domain entities.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form prefix-nanos-hex. The nanosecond timestamp
// keeps ids roughly ordered by creation time; the random suffix keeps two
// entities created in the same nanosecond from colliding. If the random
// source is unavailable the suffix is dropped rather than failing creation.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
