package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcessFirstDelivery(t *testing.T) {
	g := NewGuard(15 * time.Second)
	assert.True(t, g.ShouldProcess("MSG-1"))
}

func TestShouldProcessRejectsDuplicateInsideWindow(t *testing.T) {
	g := NewGuard(15 * time.Second)
	assert.True(t, g.ShouldProcess("MSG-1"))
	assert.False(t, g.ShouldProcess("MSG-1"))
	assert.False(t, g.ShouldProcess("MSG-1"))
}

func TestShouldProcessDistinctIDs(t *testing.T) {
	g := NewGuard(15 * time.Second)
	assert.True(t, g.ShouldProcess("MSG-1"))
	assert.True(t, g.ShouldProcess("MSG-2"))
}

func TestShouldProcessAllowsEmptyID(t *testing.T) {
	g := NewGuard(15 * time.Second)
	assert.True(t, g.ShouldProcess(""))
	assert.True(t, g.ShouldProcess(""))
}

func TestShouldProcessAllowsAfterExpiry(t *testing.T) {
	g := NewGuard(20 * time.Millisecond)
	assert.True(t, g.ShouldProcess("MSG-1"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, g.ShouldProcess("MSG-1"))
}
