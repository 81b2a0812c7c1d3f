package compression

import (
	"errors"
	"fmt"
)

// CompressionType is the on-disk compression code of a btrfs file extent.
type CompressionType byte

const (
	Compress_none CompressionType = iota //0
	Compress_zlib                        //1
	Compress_lzo                         //2
	Compress_zstd                        //3
)

// NumTypes is the number of compression types btrfs can report.
const NumTypes = 4

var ErrInvalidCompressionType = errors.New("invalid compression type")

var (
	CompressionMethods = map[string]CompressionType{
		"none": Compress_none,
		"zlib": Compress_zlib,
		"lzo":  Compress_lzo,
		"zstd": Compress_zstd,
	}

	compressionNames = [NumTypes]string{"none", "zlib", "lzo", "zstd"}
)

// FromCode converts a raw on-disk compression byte into a CompressionType.
func FromCode(code uint8) (CompressionType, error) {
	if int(code) >= NumTypes {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCompressionType, code)
	}
	return CompressionType(code), nil
}

// ParseCompressionType looks a compression type up by its name.
func ParseCompressionType(name string) (CompressionType, error) {
	t, ok := CompressionMethods[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCompressionType, name)
	}
	return t, nil
}

func (t CompressionType) Index() int {
	return int(t)
}

func (t CompressionType) String() string {
	if int(t) < NumTypes {
		return compressionNames[t]
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// All returns every known compression type in on-disk code order.
func All() []CompressionType {
	return []CompressionType{Compress_none, Compress_zlib, Compress_lzo, Compress_zstd}
}
