package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Alpha":                 "alpha",
		"Hello World":           "hello-world",
		"  Mastering CSS Grid ": "mastering-css-grid",
		"Why I Use Next.js":     "why-i-use-nextjs",
		"Café Racer!":           "cafe-racer",
		"a_b--c   d":            "a-b-c-d",
		"--Edge--":              "edge",
		"Projects":              "projects",
		"":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), "Make(%q)", in)
	}
}

func TestAllocator_SuffixesCollisionsInOrder(t *testing.T) {
	a := NewAllocator()
	s, changed := a.Assign("alpha")
	assert.Equal(t, "alpha", s)
	assert.False(t, changed)

	s, changed = a.Assign("alpha")
	assert.Equal(t, "alpha-2", s)
	assert.True(t, changed)

	s, _ = a.Assign("alpha-2")
	assert.Equal(t, "alpha-2-2", s)

	s, _ = a.Assign("alpha")
	assert.Equal(t, "alpha-3", s)

	s, _ = a.Assign("")
	assert.Equal(t, "untitled", s)
}
