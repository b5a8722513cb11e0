package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns prefix-<uuid>, or a bare uuid when prefix is empty.
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// StampedID returns prefix-<unix millis>-<6 random base36 chars>, the shape
// used for issue, project and wiki ids.
func StampedID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), RandomSuffix(6))
}

// RandomSuffix returns n random base36 characters.
func RandomSuffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base36)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			out[i] = base36[0]
			continue
		}
		out[i] = base36[v.Int64()]
	}
	return string(out)
}
