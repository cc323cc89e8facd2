// Package macro expands ${name} references in script lines against the run's
// variable table.
package macro

import (
	"strings"

	"github.com/mcci-catena/catenaprov/internal/runctx"
)

// Table is the variable lookup consumed by Expand.
type Table interface {
	Get(name string) (string, bool)
}

// Reporter records non-fatal expansion errors.
type Reporter interface {
	Errorf(format string, args ...any)
}

// Expand substitutes ${name} references in line. An unresolved name is
// reported through report and replaced with the literal text {name}, so the
// expanded line shows exactly which reference failed. The ${name:suffix} form
// is reserved; a non-empty suffix returns a FatalError.
//
// Scanning resumes directly after each replacement, so substituted values are
// never re-scanned. A '$' not followed by a brace, or a brace never closed,
// passes through unchanged.
func Expand(line string, vars Table, report Reporter) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(line) {
		start := strings.Index(line[i:], "${")
		if start < 0 {
			out.WriteString(line[i:])
			break
		}
		start += i
		end := strings.IndexByte(line[start+2:], '}')
		if end < 0 {
			out.WriteString(line[i:])
			break
		}
		end += start + 2

		out.WriteString(line[i:start])
		inner := line[start+2 : end]

		name := inner
		if colon := strings.IndexByte(inner, ':'); colon >= 0 {
			suffix := inner[colon+1:]
			if suffix != "" {
				return "", runctx.Fatalf("macro ${%s}: suffix expansion is not supported", inner)
			}
			name = inner[:colon]
		}

		if value, ok := vars.Get(name); ok {
			out.WriteString(value)
		} else {
			report.Errorf("Unknown macro %s", name)
			out.WriteString("{" + name + "}")
		}
		i = end + 1
	}
	return out.String(), nil
}
