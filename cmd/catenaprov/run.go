package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcci-catena/catenaprov/internal/config"
	"github.com/mcci-catena/catenaprov/internal/device"
	"github.com/mcci-catena/catenaprov/internal/logging"
	"github.com/mcci-catena/catenaprov/internal/protocol"
	"github.com/mcci-catena/catenaprov/internal/runctx"
	"github.com/mcci-catena/catenaprov/internal/script"
	"github.com/mcci-catena/catenaprov/internal/transport"
	"github.com/mcci-catena/catenaprov/internal/ui"
)

type runOptions struct {
	port       string
	baudRate   int
	charDelay  time.Duration
	debug      bool
	verbose    bool
	echo       bool
	info       bool
	noWrite    bool
	permissive bool
	wError     bool
	bindings   []string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [script ...]",
		Short: "Bootstrap the device session and execute provisioning scripts",
		Long: `Open the serial port, bootstrap the device session (echo off, version
query, system EUI query), then execute each script in order. Use "-" to read
a script from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.port, "port", "p", "", "serial port name (system specific)")
	flags.IntVar(&opts.baudRate, "baud", 0, "baud rate (default 115200)")
	flags.DurationVar(&opts.charDelay, "char-delay", 0, "delay between characters for slow device buffers")
	flags.BoolVarP(&opts.debug, "debug", "D", false, "operate in debug mode; produces more output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "operate in verbose mode")
	flags.BoolVar(&opts.echo, "echo", false, "echo each expanded script line to stdout")
	flags.BoolVar(&opts.info, "info", false, "display the device session summary")
	flags.BoolVar(&opts.noWrite, "nowrite", false, "disable writes to the device (dry run)")
	flags.BoolVar(&opts.permissive, "permissive", false, "don't give up if SysEUI isn't set")
	flags.BoolVar(&opts.wError, "Werror", false, "warning messages become error messages")
	flags.StringArrayVarP(&opts.bindings, "var", "V", nil, "bind a script variable, in name=value format")

	return cmd
}

func runProvision(cmd *cobra.Command, opts *runOptions, scripts []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	port := opts.port
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		return fmt.Errorf("must specify -port")
	}
	baudRate := cfg.BaudRate
	if opts.baudRate != 0 {
		baudRate = opts.baudRate
	}
	if baudRate < transport.MinBaudRate {
		return fmt.Errorf("baud rate too small: %d", baudRate)
	}
	charDelay := cfg.CharDelay
	if cmd.Flags().Changed("char-delay") {
		charDelay = opts.charDelay
	}

	logger, err := logging.New(opts.verbose, opts.debug)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logger.Close()

	rc := runctx.New(runctx.Flags{
		Verbose:          opts.verbose,
		Debug:            opts.debug,
		WarningsAsErrors: opts.wError,
		WriteEnable:      !opts.noWrite,
		Echo:             opts.echo || cfg.Echo,
		Info:             opts.info,
		Permissive:       opts.permissive || cfg.Permissive,
	}, logger)

	rc.Vars().SetAll(cfg.Variables)
	for _, binding := range opts.bindings {
		name, value, err := parseBinding(binding)
		if err != nil {
			return err
		}
		rc.Vars().Set(name, value)
	}
	for _, name := range runctx.Reserved {
		if _, bound := rc.Vars().Get(name); !bound {
			rc.Debugf("reserved variable %s is not bound", name)
		}
	}

	if available, err := transport.PortAvailable(port); err != nil {
		rc.Debugf("Can't enumerate ports: %v", err)
	} else if !available {
		return fmt.Errorf("port %s is unavailable", port)
	}

	conn, err := transport.Open(port, transport.Options{
		BaudRate:  baudRate,
		CharDelay: charDelay,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	rc.Debugf("Port %s opened", port)

	ex := protocol.NewExchanger(conn, rc)

	summary, err := device.Bootstrap(ex, rc)
	if err != nil {
		// The fatal case: no identity, no run.
		rc.Errorf("%v", err)
		return rc.ExitError()
	}
	if opts.info && summary != nil {
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSummary(summary))
	}

	runner := script.NewRunner(ex, rc, cmd.OutOrStdout(), cmd.InOrStdin())
	for _, source := range scripts {
		ok, err := runner.Run(source)
		if err != nil {
			rc.Errorf("%v", err)
			break
		}
		if !ok {
			// The failed script is already counted; later scripts still run.
			continue
		}
	}

	return rc.ExitError()
}

// parseBinding splits a -V argument of the form name=value. Names are
// restricted to alphanumerics and underscore.
func parseBinding(s string) (name, value string, err error) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return "", "", fmt.Errorf("illegal variable specification: %q", s)
	}
	name, value = s[:eq], s[eq+1:]
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return "", "", fmt.Errorf("illegal variable specification: %q", s)
		}
	}
	return name, value, nil
}
