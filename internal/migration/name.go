package migration

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Dir is the directory holding an app's migrations.
	Dir = "migrations"
	// MaxMigrationFile is the pointer file naming an app's latest migration.
	MaxMigrationFile = "max_migration.txt"

	sourceExt   = ".py"
	numberWidth = 4
	maxNumber   = 9999
)

// FileName is a validated migration identifier of the form NNNN_description.
// The zero value is not a valid name.
type FileName struct {
	name string
}

// ParseFileName validates raw and strips a trailing ".py".
func ParseFileName(raw string) (FileName, error) {
	if !validFileName(raw) {
		return FileName{}, fmt.Errorf("%w: %q", ErrInvalidFileName, raw)
	}
	name := raw
	if trimmed := strings.TrimSuffix(raw, sourceExt); validFileName(trimmed) {
		name = trimmed
	}
	return FileName{name: name}, nil
}

// MustParseFileName is ParseFileName for names known to be valid.
func MustParseFileName(raw string) FileName {
	n, err := ParseFileName(raw)
	if err != nil {
		panic(err)
	}
	return n
}

func validFileName(s string) bool {
	if len(s) < numberWidth+2 || s[numberWidth] != '_' {
		return false
	}
	for i := 0; i < numberWidth; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Number returns the four-digit sequence number.
func (n FileName) Number() int {
	v, _ := strconv.Atoi(n.name[:numberWidth])
	return v
}

// Description returns everything after the underscore.
func (n FileName) Description() string {
	return n.name[numberWidth+1:]
}

// WithNumber returns the name renumbered to number, keeping the description.
func (n FileName) WithNumber(number int) (FileName, error) {
	if number < 0 || number > maxNumber {
		return FileName{}, fmt.Errorf("%w: number %d for %s does not fit in %d digits", ErrInvalidFileName, number, n.name, numberWidth)
	}
	return FileName{name: fmt.Sprintf("%0*d_%s", numberWidth, number, n.Description())}, nil
}

// SourceFile is the on-disk file name.
func (n FileName) SourceFile() string {
	return n.name + sourceExt
}

func (n FileName) String() string {
	return n.name
}

func (n FileName) MarshalText() ([]byte, error) {
	return []byte(n.name), nil
}

func (n *FileName) UnmarshalText(text []byte) error {
	parsed, err := ParseFileName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
