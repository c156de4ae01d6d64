package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	c := New(time.Minute, 0, 10)

	c.Set("theme:floresta", "suggestions")

	v, ok := c.Get("theme:floresta")
	assert.True(t, ok)
	assert.Equal(t, "suggestions", v)
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute, 0, 10)

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestExpiration(t *testing.T) {
	c := New(time.Minute, 0, 10)

	c.SetWithExpiration("k", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMaxItemsEviction(t *testing.T) {
	c := New(time.Minute, 0, 3)

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, 3, c.Count())
}
