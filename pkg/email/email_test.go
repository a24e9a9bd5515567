package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"alice@example.com":         true,
		"Alice.Smith+x@example.org": true,
		"  alice@example.com ":      true,
		"":                          false,
		"alice":                     false,
		"alice@localhost":           false,
		"Alice <alice@example.com>": false,
		"alice@@example.com":        false,
	}
	for in, want := range cases {
		assert.Equal(t, want, Valid(in), "Valid(%q)", in)
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "a***@example.com", Mask("alice@example.com"))
	assert.Equal(t, "***", Mask("not-an-email"))
	assert.Equal(t, "***", Mask("@example.com"))
	assert.Equal(t, "", Mask(""))
}
