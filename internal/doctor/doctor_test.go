package doctor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllHealthy(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	script := filepath.Join(t.TempDir(), "setup.cat")
	require.NoError(t, os.WriteFile(script, []byte("system echo off\n"), 0o600))

	results := Run(Options{
		Port:    "/dev/ttyUSB0",
		Scripts: []string{script},
		Lister:  func() ([]string, error) { return []string{"/dev/ttyUSB0", "/dev/ttyACM0"}, nil },
	})

	require.Len(t, results, 3)
	assert.True(t, Healthy(results), "results: %+v", results)
}

func TestRunPortMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	results := Run(Options{
		Port:   "/dev/ttyUSB9",
		Lister: func() ([]string, error) { return []string{"/dev/ttyUSB0"}, nil },
	})

	require.Len(t, results, 2)
	port := results[1]
	assert.False(t, port.OK)
	assert.Contains(t, port.Detail, "not found")
	assert.Contains(t, port.Detail, "/dev/ttyUSB0")
	assert.False(t, Healthy(results))
}

func TestRunPortEnumerationFailure(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	results := Run(Options{
		Port:   "/dev/ttyUSB0",
		Lister: func() ([]string, error) { return nil, errors.New("no permission") },
	})

	port := results[1]
	assert.False(t, port.OK)
	assert.Contains(t, port.Detail, "no permission")
}

func TestRunScriptChecks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.cat")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	results := Run(Options{
		Scripts: []string{empty, filepath.Join(dir, "missing.cat"), "-"},
	})

	require.Len(t, results, 4)
	assert.False(t, results[1].OK, "empty file must fail")
	assert.False(t, results[2].OK, "missing file must fail")
	assert.True(t, results[3].OK, "stdin sentinel is always runnable")
}

func TestRunSkipsPortCheckWithoutPort(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	results := Run(Options{})
	require.Len(t, results, 1)
	assert.Equal(t, "config", results[0].Name)
}
