package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespacedID(t *testing.T) {
	assert.Equal(t, "ES::123", NamespacedID("ES", "123"))
	assert.Equal(t, "Z3950.loc::a::b", NamespacedID("Z3950.loc", "a::b"))
}

func TestSplitID(t *testing.T) {
	tests := []struct {
		id     string
		source string
		local  string
		ok     bool
	}{
		{"ES::123", "ES", "123", true},
		{"SQL::a::b", "SQL", "a::b", true},
		{"ES::", "", "", false},
		{"::123", "", "", false},
		{"ES123", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		source, local, ok := SplitID(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		assert.Equal(t, tt.source, source, tt.id)
		assert.Equal(t, tt.local, local, tt.id)
	}
}

func TestBookValidAndFrom(t *testing.T) {
	b := Book{ID: NamespacedID("ES", "456"), Library: NewLibrary("ES", "111101")}
	assert.True(t, b.Valid())
	assert.True(t, b.From("ES"))
	assert.False(t, b.From("SQL"))
	assert.Equal(t, "ES::111101", b.Library.ID)
	assert.Empty(t, b.Library.Name)
	assert.Nil(t, b.Library.Location)

	assert.False(t, Book{ID: "456"}.Valid())
}
