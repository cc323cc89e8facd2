// Package doctor runs preflight checks so an operator can see why a
// provisioning run would fail before touching the device.
package doctor

import (
	"fmt"
	"os"
	"strings"

	"github.com/mcci-catena/catenaprov/internal/config"
)

// PortLister enumerates host serial ports; transport.ListPorts in production.
type PortLister func() ([]string, error)

// CheckResult is the outcome of one preflight check.
type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

// Options select what to check.
type Options struct {
	Port    string
	Scripts []string
	Lister  PortLister
}

// Run executes the preflight checks in a fixed order: configuration,
// port visibility, script readability.
func Run(opts Options) []CheckResult {
	var results []CheckResult

	results = append(results, checkConfig())
	if opts.Port != "" {
		results = append(results, checkPort(opts.Port, opts.Lister))
	}
	for _, s := range opts.Scripts {
		results = append(results, checkScript(s))
	}
	return results
}

// Healthy reports whether every check passed.
func Healthy(results []CheckResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

func checkConfig() CheckResult {
	cfg, err := config.Load()
	if err != nil {
		return CheckResult{Name: "config", Detail: err.Error()}
	}
	detail := "defaults"
	if cfg.Port != "" {
		detail = fmt.Sprintf("default port %s", cfg.Port)
	}
	return CheckResult{Name: "config", OK: true, Detail: detail}
}

func checkPort(name string, lister PortLister) CheckResult {
	if lister == nil {
		return CheckResult{Name: "port", Detail: "no port lister available"}
	}
	ports, err := lister()
	if err != nil {
		return CheckResult{Name: "port", Detail: fmt.Sprintf("enumerate ports: %v", err)}
	}
	for _, p := range ports {
		if p == name {
			return CheckResult{Name: "port", OK: true, Detail: name}
		}
	}
	detail := fmt.Sprintf("%s not found", name)
	if len(ports) > 0 {
		detail += "; available: " + strings.Join(ports, ", ")
	}
	return CheckResult{Name: "port", Detail: detail}
}

func checkScript(path string) CheckResult {
	name := "script " + path
	if path == "-" {
		return CheckResult{Name: name, OK: true, Detail: "stdin"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return CheckResult{Name: name, Detail: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Name: name, Detail: "is a directory"}
	}
	f, err := os.Open(path)
	if err != nil {
		return CheckResult{Name: name, Detail: err.Error()}
	}
	f.Close()
	if info.Size() == 0 {
		return CheckResult{Name: name, Detail: "empty file"}
	}
	return CheckResult{Name: name, OK: true, Detail: fmt.Sprintf("%d bytes", info.Size())}
}
