package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateKey tests key validation rules.
func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty key", "", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"md5 digest", "900150983cd24fb0d6963f7d28e17f72", nil},
		{"sha256 digest", strings.Repeat("ab", 32), nil},
		{"uppercase hex", "900150983CD24FB0D6963F7D28E17F72", ErrInvalidKey},
		{"path traversal", "../etc/passwd", ErrInvalidKey},
		{"separator", "abc/def", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
		{"max length exactly", strings.Repeat("a", MaxKeyLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, ValidateKey(tt.key))
		})
	}
}

// TestSentinelErrors verifies sentinel errors are distinct and have expected messages.
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrInvalidKey", ErrInvalidKey, "cache: key is invalid"},
		{"ErrKeyTooLong", ErrKeyTooLong, "cache: key exceeds max length"},
		{"ErrNotFound", ErrNotFound, "cache: entry not found"},
		{"ErrCommitted", ErrCommitted, "cache: reservation already finished"},
		{"ErrEmptyRoot", ErrEmptyRoot, "cache: root directory is required"},
		{"ErrEmptyResult", ErrEmptyResult, "cache: refusing to commit an empty entry"},
	}

	seen := make(map[error]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.wantMsg)
		})
		assert.NotContains(t, seen, tt.err, "%s duplicates another sentinel", tt.name)
		seen[tt.err] = tt.name
	}
}
