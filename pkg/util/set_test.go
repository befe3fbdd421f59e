package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/pkg/util"
)

func TestSetOf(t *testing.T) {
	s := util.SetOf("a", "b", "b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))
}

func TestSetAddRemove(t *testing.T) {
	s := util.Set[int]{}
	assert.True(t, s.IsEmpty())

	s.Add(1)
	s.Add(2)
	assert.Equal(t, 2, s.Len())

	s.Remove(1)
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(2))
}
