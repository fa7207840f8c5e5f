package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameParts(t *testing.T) {
	tests := []struct {
		address     string
		first, last string
	}{
		{"jane.w.kamau@example.org", "Jane", "Kamau"},
		{"OTIENO@example.org", "Otieno", ""},
		{"mary_achieng+farm@example.org", "Mary", "Achieng"},
		{"12345@example.org", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			first, last := NameParts(tt.address)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}
