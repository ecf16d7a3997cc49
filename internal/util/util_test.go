package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrToHz(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantOK  bool
	}{
		{"plain megahertz", "100M", 100_000_000, true},
		{"fractional megahertz", "433.92M", 433_920_000, true},
		{"gigahertz", "1.6G", 1_600_000_000, true},
		{"padded integer hz", " 42 ", 42, true},
		{"kilohertz", "10k", 10_000, true},
		{"malformed", "abc", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StrToHz(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
