package compression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromCode(t *testing.T) {
	testCases := []struct {
		name      string
		code      uint8
		expected  CompressionType
		expectErr bool
	}{
		{"none", 0, Compress_none, false},
		{"zlib", 1, Compress_zlib, false},
		{"lzo", 2, Compress_lzo, false},
		{"zstd", 3, Compress_zstd, false},
		{"first unknown", 4, 0, true},
		{"max byte", 255, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := FromCode(tc.code)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrInvalidCompressionType)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, c)
			assert.Equal(t, int(tc.code), c.Index())
		})
	}
}

func TestParseCompressionType(t *testing.T) {
	for _, c := range All() {
		parsed, err := ParseCompressionType(c.String())
		assert.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseCompressionType("snappy")
	assert.ErrorIs(t, err, ErrInvalidCompressionType)
}

func TestString(t *testing.T) {
	assert.Equal(t, "zstd", Compress_zstd.String())
	assert.Equal(t, "unknown(9)", CompressionType(9).String())
	assert.Len(t, All(), NumTypes)
}
