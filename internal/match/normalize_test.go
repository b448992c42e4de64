package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"diacritics", "Nováková, Jana", "novakova, jana"},
		{"czech carons", "Dvořák, Tomáš", "dvorak, tomas"},
		{"uppercase", "NOVAKOVA JANA", "novakova jana"},
		{"whitespace collapse", "  Tomas   Bata\tUniv ", "tomas bata univ"},
		{"already clean", "zlin", "zlin"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNameTokens(t *testing.T) {
	assert.Equal(t, []string{"novakova", "j"}, NameTokens("Nováková, J."))
	assert.Equal(t, []string{"de", "la", "cruz", "maria"}, NameTokens("de la Cruz, María"))
	assert.Empty(t, NameTokens("..."))
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, "novakova jana", NameKey("Nováková, Jana"))
	assert.Equal(t, "novakova jana", NameKey("NOVÁKOVÁ  JANA"))
}

func TestCanonicalKey_OrderIndependent(t *testing.T) {
	a := canonicalKey("Nováková, Jana")
	b := canonicalKey("Jana Novakova")
	c := canonicalKey("NOVAKOVA JANA")

	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
	assert.NotEqual(t, a, canonicalKey("Novakova, Jarmila"))
}
