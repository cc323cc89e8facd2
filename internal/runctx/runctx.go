// Package runctx holds the state shared by every stage of a provisioning
// run: mode flags, warning/error counters, and the macro variable table.
package runctx

import (
	"fmt"
	"sort"
)

// Reserved variable names pre-declared by the provisioning flow. SYSEUI is
// bound by the device bootstrap; the rest are supplied by the operator or by
// surrounding registration tooling.
var Reserved = []string{
	"APPEUI",
	"DEVEUI",
	"APPKEY",
	"APPID",
	"BASENAME",
	"HANDLERID",
	"SYSEUI",
}

// Logger is the diagnostic sink consumed by the run. Implemented by
// logging.RuntimeLogger; tests substitute an in-memory recorder.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Flags are the run modes, set once from the CLI and read-only afterwards.
type Flags struct {
	Verbose          bool
	Debug            bool
	WarningsAsErrors bool
	WriteEnable      bool
	Echo             bool
	Info             bool
	Permissive       bool
}

// Context is the run-wide state threaded through transport, protocol, device
// session and script runner. It is not safe for concurrent use; the run is
// single-threaded by design.
type Context struct {
	flags    Flags
	logger   Logger
	vars     *Vars
	warnings int
	errors   int
}

// New creates a run context with an empty variable table.
func New(flags Flags, logger Logger) *Context {
	return &Context{
		flags:  flags,
		logger: logger,
		vars:   NewVars(),
	}
}

// Flags returns the run's mode flags.
func (c *Context) Flags() Flags { return c.flags }

// Vars returns the run's variable table.
func (c *Context) Vars() *Vars { return c.vars }

// Warnings returns the number of warnings recorded so far.
func (c *Context) Warnings() int { return c.warnings }

// Errors returns the number of errors recorded so far.
func (c *Context) Errors() int { return c.errors }

// EffectiveErrors is the error count used for the exit status: errors, or
// errors plus warnings when warnings-as-errors is set.
func (c *Context) EffectiveErrors() int {
	n := c.errors
	if c.flags.WarningsAsErrors {
		n += c.warnings
	}
	return n
}

// Warnf records a warning and logs it.
func (c *Context) Warnf(format string, args ...any) {
	c.warnings++
	c.logger.Warnf(format, args...)
}

// Errorf records an error and logs it.
func (c *Context) Errorf(format string, args ...any) {
	c.errors++
	c.logger.Errorf(format, args...)
}

// Verbosef logs at info level; the logger's level gates whether it is shown.
func (c *Context) Verbosef(format string, args ...any) {
	c.logger.Infof(format, args...)
}

// Debugf logs at debug level.
func (c *Context) Debugf(format string, args ...any) {
	c.logger.Debugf(format, args...)
}

// ExitError returns the run's terminal error, or nil when the run is clean.
func (c *Context) ExitError() error {
	if n := c.EffectiveErrors(); n > 0 {
		return fmt.Errorf("%d errors detected", n)
	}
	c.logger.Debugf("No errors detected")
	return nil
}

// FatalError is the one condition that aborts the whole run instead of
// accumulating as a counted error: remaining scripts are skipped and the
// process exits non-zero.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return e.Msg }

// Fatalf builds a FatalError.
func Fatalf(format string, args ...any) error {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}

// Vars is an ordered, case-sensitive variable table. Later writes overwrite
// earlier ones in place; entries are never removed during a run.
type Vars struct {
	names  []string
	values map[string]string
}

// NewVars returns an empty variable table.
func NewVars() *Vars {
	return &Vars{values: make(map[string]string)}
}

// Set binds name to value, preserving the original insertion position on
// rebind.
func (v *Vars) Set(name, value string) {
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// Get looks up name.
func (v *Vars) Get(name string) (string, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Names returns the bound names in insertion order.
func (v *Vars) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// SetAll binds every entry of m in sorted-name order, so runs are
// deterministic regardless of map iteration.
func (v *Vars) SetAll(m map[string]string) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v.Set(name, m[name])
	}
}
