package output

import (
	"os"
	"strings"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Format selects how command results are written.
type Format int

const (
	FormatAuto     Format = iota // resolved from the destination stream
	FormatTerminal               // styled tables
	FormatText                   // same layout, no styling
	FormatJSON                   // one JSON document per command
)

var formatNames = [...]string{
	FormatAuto:     "auto",
	FormatTerminal: "term",
	FormatText:     "text",
	FormatJSON:     "json",
}

// formatAliases accepts the long spellings next to the canonical names.
var formatAliases = map[string]Format{
	"":         FormatAuto,
	"terminal": FormatTerminal,
	"plain":    FormatText,
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return "unknown"
	}
	return formatNames[f]
}

// ParseFormat accepts a canonical name or alias, case-insensitively.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range formatNames {
		if n == name {
			return Format(i), nil
		}
	}
	if f, ok := formatAliases[name]; ok {
		return f, nil
	}
	return FormatAuto, errors.Newf(errors.ErrInvalidInput, "unknown output format %q", s).
		WithDetail("format", s)
}

// Resolve turns FormatAuto into a concrete format for out. Other formats are
// returned unchanged.
func (f Format) Resolve(out *os.File) Format {
	if f != FormatAuto {
		return f
	}
	return DetectFormat(out)
}

// DetectFormat reports FormatTerminal only when out is a color-capable tty
// and NO_COLOR is unset.
func DetectFormat(out *os.File) Format {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return FormatText
	}
	fd := out.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if tty && termenv.NewOutput(out).ColorProfile() != termenv.Ascii {
		return FormatTerminal
	}
	return FormatText
}
