// Package device implements the session bootstrap: the fixed exchanges that
// disable echo, identify the attached board, and fetch the system EUI before
// any script runs.
package device

import (
	"strings"

	"github.com/mcci-catena/catenaprov/internal/protocol"
	"github.com/mcci-catena/catenaprov/internal/runctx"
)

const (
	cmdEchoOff = "system echo off"
	cmdVersion = "system version"
	cmdSysEUI  = "system configure syseui"

	// VarSysEUI is the reserved variable bound to the discovered identity.
	VarSysEUI = "SYSEUI"
	// SysEUINotSet is the sentinel identity substituted in permissive mode
	// when the device EUI cannot be obtained.
	SysEUINotSet = "{syseui-not-set}"

	keyBoard           = "Board"
	keyPlatformVersion = "Platform-Version"

	// An EUI-64 prints as 8 hex pairs joined by dashes: 23 characters.
	euiGroups     = 8
	euiEncodedLen = euiGroups*2 + euiGroups - 1
	euiSeparator  = '-'
)

// Field is one key/value pair from the version query, in device order.
type Field struct {
	Key   string
	Value string
}

// Summary is the bootstrap result used to seed script variables and feed the
// info display. Never mutated after bootstrap.
type Summary struct {
	Board           string
	PlatformVersion string
	SysEUI          string
	Fields          []Field
}

// Bootstrap runs the fixed session-establishment sequence over ex. On
// success the discovered identity (uppercased, separators stripped) and the
// version fields are stored in the run's variable table.
//
// The identity is required: if the EUI could not be obtained and the run is
// not permissive, the returned error is a runctx.FatalError and the whole run
// must stop. The one exception is an unrecognizable version response, which
// has already been counted as an error; the session then continues with no
// identity bound, so any later ${SYSEUI} reference surfaces visibly.
func Bootstrap(ex *protocol.Exchanger, rc *runctx.Context) (*Summary, error) {
	rc.Debugf("CheckComms")

	if out := ex.Send(cmdEchoOff); !out.OK {
		rc.Warnf("Can't turn off echo: %s", out)
	}

	fields, recognized := queryVersion(ex, rc)
	summary := &Summary{
		Board:           fieldValue(fields, keyBoard),
		PlatformVersion: fieldValue(fields, keyPlatformVersion),
		Fields:          fields,
	}
	if !recognized {
		return summary, nil
	}

	eui := querySysEUI(ex, rc)
	if eui == "" {
		if !rc.Flags().Permissive {
			return nil, runctx.Fatalf("SysEUI not set")
		}
		eui = strings.ToUpper(SysEUINotSet)
	}
	summary.SysEUI = eui

	rc.Verbosef("Catena Type: %s; Platform Version: %s; SysEUI: %s",
		summary.Board, summary.PlatformVersion, summary.SysEUI)

	rc.Vars().Set(VarSysEUI, summary.SysEUI)
	for _, f := range fields {
		rc.Vars().Set(strings.ToUpper(f.Key), f.Value)
	}
	return summary, nil
}

// queryVersion fetches and parses the version report. An exchange failure
// degrades to '?' placeholders; a reply that parses but lacks the required
// Board and Platform-Version keys is unrecognizable and stops the bootstrap
// short of the identity query. Both count as an error, or a warning in
// permissive mode.
func queryVersion(ex *protocol.Exchanger, rc *runctx.Context) (fields []Field, recognized bool) {
	out := ex.Send(cmdVersion)
	if !out.OK {
		versionProblem(rc, "Can't read version: %s", out)
		return placeholderFields(), true
	}

	fields = ParseVersion(out.Payload)
	if fieldValue(fields, keyBoard) == "" || fieldValue(fields, keyPlatformVersion) == "" {
		versionProblem(rc, "Unrecognized version response: %q", out.Payload)
		return placeholderFields(), false
	}
	return fields, true
}

func versionProblem(rc *runctx.Context, format string, args ...any) {
	if rc.Flags().Permissive {
		rc.Warnf(format, args...)
	} else {
		rc.Errorf(format, args...)
	}
}

func placeholderFields() []Field {
	return []Field{
		{Key: keyBoard, Value: "?"},
		{Key: keyPlatformVersion, Value: "?"},
	}
}

// querySysEUI fetches the device identity. Returns the normalized EUI
// (uppercase, separators stripped) or "" when it could not be obtained.
func querySysEUI(ex *protocol.Exchanger, rc *runctx.Context) string {
	out := ex.Send(cmdSysEUI)
	if !out.OK {
		if rc.Flags().Permissive {
			rc.Warnf("Error getting syseui: %s", out)
		} else {
			rc.Errorf("Error getting syseui: %s", out)
		}
		return ""
	}

	raw := strings.TrimSpace(out.Payload)
	if !ValidEUI(raw) {
		rc.Errorf("Unrecognized EUI response: %q", raw)
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(raw, string(euiSeparator), ""))
}

// ParseVersion splits a version payload into ordered key/value fields. Lines
// look like "Board: Catena 4610"; keys carry no internal colon or blanks,
// values are trimmed. Lines without a colon are ignored.
func ParseVersion(payload string) []Field {
	var fields []Field
	for _, line := range strings.Split(payload, "\n") {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	return fields
}

// ValidEUI reports whether s has the device's EUI-64 shape: 8 groups of 2 hex
// digits joined by dashes.
func ValidEUI(s string) bool {
	if len(s) != euiEncodedLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if (i+1)%3 == 0 {
			if s[i] != euiSeparator {
				return false
			}
			continue
		}
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}
	return false
}

func fieldValue(fields []Field, key string) string {
	for _, f := range fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}
