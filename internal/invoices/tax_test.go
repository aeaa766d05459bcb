package invoices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTax(t *testing.T) {
	tests := []struct {
		name string
		base int64
		want int64
	}{
		{"round number", 10000, 1800},
		{"zero", 0, 0},
		{"rounds half up", 25, 5}, // 4.5 -> 5
		{"rounds down", 13, 2},    // 2.34 -> 2
		{"large", 123456789, 22222222},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTax(tt.base))
		})
	}
}
