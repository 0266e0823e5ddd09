// Package uuid issues time ordered (version 7) identifiers for sites, blobs
// and sync runs.
package uuid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

type UUID = uuid.UUID

var Nil = uuid.Nil

// New returns a new version 7 UUID.
func New() UUID {
	uuidv7, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return uuidv7
}

func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// Timestamp extracts the creation time embedded in a version 7 UUID.
func Timestamp(u UUID) time.Time {
	tsMillis := binary.BigEndian.Uint64(u[0:8]) >> 16 // top 48 bits
	return time.UnixMilli(int64(tsMillis))
}

// Compare orders two version 7 UUIDs by creation time.
func Compare(a, b UUID) int {
	for i := range a {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}
