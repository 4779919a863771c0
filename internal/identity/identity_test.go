package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_Principal(t *testing.T) {
	r := Resolver{Domain: "example.com"}

	assert.Equal(t, "jdoe@example.com", r.Principal("JDOE"))
	assert.Equal(t, "jdoe@example.com", r.Principal("  jdoe "))
	assert.Equal(t, "jdoe@other.org", r.Principal("JDOE@other.org"), "existing principals pass through")
	assert.Equal(t, "", r.Principal(""))
}

func TestResolver_Short(t *testing.T) {
	r := Resolver{Domain: "example.com"}

	assert.Equal(t, "JDOE", r.Short("jdoe@example.com"))
	assert.Equal(t, "JDOE", r.Short("JDOE"), "already-short names are just upcased")
}

func TestResolver_RoundTrip(t *testing.T) {
	r := Resolver{Domain: "example.com"}
	assert.Equal(t, "ASMITH", r.Short(r.Principal("ASMITH")))
}
