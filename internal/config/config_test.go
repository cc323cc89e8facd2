package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcci-catena/catenaprov/internal/transport"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		if chdirErr := os.Chdir(cwd); chdirErr != nil {
			t.Fatalf("restore cwd: %v", chdirErr)
		}
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, ".catenaprov")
	if err := os.MkdirAll(cfgDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Port != "" {
		t.Fatalf("port = %q, want empty", cfg.Port)
	}
	if cfg.BaudRate != transport.DefaultBaudRate {
		t.Fatalf("baud_rate = %d, want %d", cfg.BaudRate, transport.DefaultBaudRate)
	}
	if cfg.CharDelay != 0 {
		t.Fatalf("char_delay = %s, want 0", cfg.CharDelay)
	}
	if cfg.Echo || cfg.Permissive {
		t.Fatalf("echo/permissive = %v/%v, want false/false", cfg.Echo, cfg.Permissive)
	}
	if len(cfg.Variables) != 0 {
		t.Fatalf("variables = %v, want empty", cfg.Variables)
	}
}

func TestLoadGlobalConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	writeConfig(t, home, `
port = "/dev/ttyUSB0"
baud_rate = 57600
char_delay = "2ms"

[variables]
APPID = "my-app"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Port != "/dev/ttyUSB0" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.BaudRate != 57600 {
		t.Fatalf("baud_rate = %d", cfg.BaudRate)
	}
	if cfg.CharDelay != 2*time.Millisecond {
		t.Fatalf("char_delay = %s", cfg.CharDelay)
	}
	if cfg.Variables["APPID"] != "my-app" {
		t.Fatalf("variables = %v", cfg.Variables)
	}
}

func TestLoadProjectOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, work)

	writeConfig(t, home, `
port = "/dev/ttyUSB0"
permissive = true

[variables]
APPID = "global-app"
BASENAME = "device-"
`)
	writeConfig(t, work, `
port = "/dev/ttyACM1"

[variables]
APPID = "project-app"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Port != "/dev/ttyACM1" {
		t.Fatalf("port = %q, want project override", cfg.Port)
	}
	if !cfg.Permissive {
		t.Fatal("permissive = false, want global value preserved")
	}
	if cfg.Variables["APPID"] != "project-app" {
		t.Fatalf("APPID = %q, want project override", cfg.Variables["APPID"])
	}
	if cfg.Variables["BASENAME"] != "device-" {
		t.Fatalf("BASENAME = %q, want global value preserved", cfg.Variables["BASENAME"])
	}
}

func TestLoadRejectsLowBaudRate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	writeConfig(t, home, "baud_rate = 1200\n")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for baud rate below minimum")
	}
}

func TestLoadRejectsBadCharDelay(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	writeConfig(t, home, "char_delay = \"fast\"\n")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparseable char_delay")
	}
}
