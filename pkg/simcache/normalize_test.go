package simcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"case folding", "My App KEEPS Crashing", "my app keeps crashing"},
		{"whitespace collapse", "  too   many\t spaces \n", "too many spaces"},
		{"contraction expansion", "I can't believe it doesn't work", "i cannot believe it does not work"},
		{"punctuation stripped", `"quoted", (parens) and, commas`, "quoted parens and commas"},
		{"terminal punctuation kept", "why is this so slow?", "why is this so slow?"},
		{"terminal exclamation", "this is broken!", "this is broken!"},
		{"inner punctuation on last word", "check config.yaml", "check configyaml"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeText(tc.in))
		})
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	inputs := []string{
		"I can't get this to work!",
		"Why    won't it START?",
		"plain text already normalized",
		"It's SO frustrating... really.",
		"",
	}
	for _, in := range inputs {
		once := NormalizeText(in)
		assert.Equal(t, once, NormalizeText(once), "input %q", in)
	}
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash("hello")
	h2 := ContentHash("hello")
	h3 := ContentHash("hello ")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
