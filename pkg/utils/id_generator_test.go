package utils

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsUniqueAndValid(t *testing.T) {
	g := NewReferenceGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.Generate()
		require.Len(t, id, 26)
		require.True(t, ValidateULID(id))
		require.False(t, seen[id], "duplicate ULID %s", id)
		seen[id] = true
	}
}

func TestGeneratePrefixed(t *testing.T) {
	g := NewReferenceGenerator()

	ref := g.GeneratePrefixed("WDR")
	assert.True(t, strings.HasPrefix(ref, "WDR-"))
	assert.True(t, ValidateULID(strings.TrimPrefix(ref, "WDR-")))
}

func TestValidateULIDRejectsGarbage(t *testing.T) {
	assert.False(t, ValidateULID(""))
	assert.False(t, ValidateULID("not-a-ulid"))
}

func TestGenerateConcurrent(t *testing.T) {
	g := NewReferenceGenerator()

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := g.Generate()
				mu.Lock()
				assert.False(t, seen[id])
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
