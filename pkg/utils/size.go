package utils

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteFormat selects how byte counts are rendered.
type ByteFormat int

const (
	FormatMetric ByteFormat = iota // 1.2 MB (powers of 1000)
	FormatBinary                   // 1.2 MiB (powers of 1024)
	FormatBytes                    // 1,234,567 B
)

// ParseByteFormat maps a config/flag value to a ByteFormat.
func ParseByteFormat(s string) (ByteFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric", "si":
		return FormatMetric, nil
	case "binary", "iec":
		return FormatBinary, nil
	case "bytes", "b":
		return FormatBytes, nil
	default:
		return FormatMetric, fmt.Errorf("unknown byte format %q", s)
	}
}

func (f ByteFormat) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatBytes:
		return "bytes"
	default:
		return "metric"
	}
}

// Format renders b according to f. Negative values are clamped to zero.
func (f ByteFormat) Format(b int64) string {
	if b < 0 {
		b = 0
	}
	switch f {
	case FormatBinary:
		return humanize.IBytes(uint64(b))
	case FormatBytes:
		return humanize.Comma(b) + " B"
	default:
		return humanize.Bytes(uint64(b))
	}
}

// HumanizeCount formats an entry count with thousands separators.
func HumanizeCount(n int64) string {
	return humanize.Comma(n)
}
