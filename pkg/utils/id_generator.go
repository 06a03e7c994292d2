package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReferenceGenerator produces unique, sortable reference codes for
// ledger entries and withdrawals.
type ReferenceGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate returns a ULID. 26 characters, lexicographically sortable
// by creation time.
// Example: 01ARZ3NDEKTSV4RRFFQ69G5FAV
func (g *ReferenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// GeneratePrefixed returns PREFIX-{ULID}, e.g. WDR-01ARZ3....
func (g *ReferenceGenerator) GeneratePrefixed(prefix string) string {
	return fmt.Sprintf("%s-%s", strings.ToUpper(prefix), g.Generate())
}

// ValidateULID reports whether s parses as a ULID.
func ValidateULID(s string) bool {
	if len(s) != 26 {
		return false
	}
	_, err := ulid.Parse(s)
	return err == nil
}
