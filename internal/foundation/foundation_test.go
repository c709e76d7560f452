package foundation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color string

func colors() *Normalizer[color] {
	return NewNormalizer(map[string]color{
		"red":     "red",
		"Crimson": "red",
		"blue":    "blue",
	}, "")
}

func TestNormalizer_Normalize(t *testing.T) {
	n := colors()
	assert.Equal(t, color("red"), n.Normalize("  RED "))
	assert.Equal(t, color("red"), n.Normalize("crimson"))
	assert.Equal(t, color("blue"), n.Normalize("Blue"))
	assert.Equal(t, color(""), n.Normalize("green"))
}

func TestNormalizer_NormalizeWithError(t *testing.T) {
	n := colors()
	v, err := n.NormalizeWithError("blue")
	require.NoError(t, err)
	assert.Equal(t, color("blue"), v)

	_, err = n.NormalizeWithError("green")
	require.EqualError(t, err, "invalid value: green")
}
