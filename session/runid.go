package session

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// NewRunID returns a random positive run identifier for entry points that
// have no state database to allocate one from.
func NewRunID() int64 {
	for {
		u := uuid.New()
		id := int64(binary.BigEndian.Uint64(u[:8]) & math.MaxInt64)
		if id != 0 {
			return id
		}
	}
}
