// Package bytesize parses human-readable sizes such as "64KiB", "1Gi" or
// "100MB" in configuration files.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a size in bytes.
type ByteSize uint64

const (
	B   ByteSize = 1
	KB  ByteSize = humanize.KByte
	MB  ByteSize = humanize.MByte
	GB  ByteSize = humanize.GByte
	KiB ByteSize = humanize.KiByte
	MiB ByteSize = humanize.MiByte
	GiB ByteSize = humanize.GiByte
	TiB ByteSize = humanize.TiByte
)

// ParseByteSize accepts plain numbers, decimal units (K, KB, M, MB, ...) and
// binary units (Ki, KiB, Mi, MiB, ...), case-insensitively.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText writes the exact value, using the largest binary unit that
// divides it evenly.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String is exact and parseable: "64KiB", "1GiB", or a plain count.
func (b ByteSize) String() string {
	if b == 0 {
		return "0"
	}
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}} {
		if b%u.size == 0 {
			return strconv.FormatUint(uint64(b/u.size), 10) + u.name
		}
	}
	return strconv.FormatUint(uint64(b), 10)
}

// Human is a rounded form for display, e.g. "1.5 GiB".
func (b ByteSize) Human() string {
	return humanize.IBytes(uint64(b))
}

func (b ByteSize) Int() int { return int(b) }

func (b ByteSize) Int64() int64 { return int64(b) }
