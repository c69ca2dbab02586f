// Package bytesize parses and formats human-readable byte quantities used
// for minor sizes in the configuration file.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ByteSize is a size in bytes. It decodes from plain numbers ("1048576")
// or a number followed by a unit ("64Mi", "1.5GiB", "100MB").
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var units = map[string]ByteSize{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"m":   MB,
	"mb":  MB,
	"g":   GB,
	"gb":  GB,
	"t":   TB,
	"tb":  TB,
	"ki":  KiB,
	"kib": KiB,
	"mi":  MiB,
	"mib": MiB,
	"gi":  GiB,
	"gib": GiB,
	"ti":  TiB,
	"tib": TiB,
}

// Parse converts s into a ByteSize. Units are case-insensitive and may be
// separated from the number by spaces.
func Parse(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	num, unit := s, ""
	if split >= 0 {
		num, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if num == "" {
		return 0, fmt.Errorf("invalid byte size %q: missing number", s)
	}

	mult, ok := units[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("invalid byte size %q: unknown unit %q", s, unit)
	}

	if strings.Contains(num, ".") {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		return ByteSize(f * float64(mult)), nil
	}

	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n) * mult, nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so ByteSize fields
// decode directly through mapstructure and yaml.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText implements encoding.TextMarshaler using the exact binary unit
// when the value divides evenly, so saved configs round-trip.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "Ti"}, {GiB, "Gi"}, {MiB, "Mi"}, {KiB, "Ki"}} {
		if b >= u.size && b%u.size == 0 {
			return []byte(strconv.FormatUint(uint64(b/u.size), 10) + u.name), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String returns a rounded human-readable form, e.g. "1.50GiB".
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Int64 returns the size as an int64. Values above math.MaxInt64 overflow.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// Aligned reports whether the size is a whole multiple of blockSize.
func (b ByteSize) Aligned(blockSize uint64) bool {
	return blockSize != 0 && uint64(b)%blockSize == 0
}
