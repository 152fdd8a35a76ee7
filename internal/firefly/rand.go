package firefly

import (
	"math/rand"
	"time"
)

// Source yields independent uniform draws in [0, 1). *rand.Rand satisfies it.
//
// A Source is not safe for concurrent use; every run owns its own.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded source. A zero seed selects a time-based seed.
func NewSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
