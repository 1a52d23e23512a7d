// Package adapterfactory provides the one concrete AdapterFactory
// collaborator spec.md §1 leaves external: it spawns a configured debug
// adapter process and hands back a live session.DebugSession.
//
// Spawning follows the same two shapes teacher's (unavailable) debug()
// method used: stdio piping by default, or a "--listen" TCP port plus a
// banner-line wait when a descriptor requests socket mode - the exact
// pattern go-delve-mcp-dap-server/tools.go uses for "dlv dap --listen".
package adapterfactory

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/JoshLWScott/fbdbg/internal/dapclient"
	"github.com/JoshLWScott/fbdbg/internal/logging"
	"github.com/JoshLWScott/fbdbg/internal/session"
)

// Config describes one adapter type as loaded from the viper-backed
// adapter-descriptor file (SPEC_FULL.md MODULE: AdapterFactory).
type Config struct {
	Type string `mapstructure:"type"`
	// Command and Args spawn the adapter process. Args may contain the
	// literal "{port}" placeholder, substituted when Listen is set.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`

	// Listen, when non-empty, tells Factory to spawn the adapter in
	// "--listen" socket mode and dial it after the banner line, instead
	// of piping stdio directly. Must contain "{port}".
	Listen string `mapstructure:"listen"`
	// ReadyBanner is the line prefix the adapter prints to stdout once
	// its listener is up ("DAP server listening at", teacher's own
	// constant), only consulted when Listen is set.
	ReadyBanner string `mapstructure:"readyBanner"`

	Port string `mapstructure:"port"`
}

// Factory spawns adapter processes for the descriptors SessionCore is
// configured with. It implements session.SessionFactory.
type Factory struct {
	configs map[string]Config
	log     logging.Logger
}

// New returns a Factory keyed by Config.Type.
func New(configs []Config, log logging.Logger) *Factory {
	byType := make(map[string]Config, len(configs))
	for _, c := range configs {
		byType[c.Type] = c
	}
	return &Factory{configs: byType, log: log}
}

// NewSession implements session.SessionFactory: spawn the adapter process
// named by descriptor.Type and wrap its transport in a dapclient.Client.
func (f *Factory) NewSession(ctx context.Context, descriptor session.AdapterDescriptor) (session.DebugSession, error) {
	cfg, ok := f.configs[descriptor.Type]
	if !ok {
		return nil, errors.Errorf("adapterfactory: unknown adapter type %q", descriptor.Type)
	}

	rw, proc, err := f.spawn(ctx, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "adapterfactory: spawning %q", cfg.Type)
	}
	f.log.Infof("adapter %q spawned, pid=%d", cfg.Type, proc.Pid)

	return dapclient.New(rw, f.log), nil
}

// processTransport adapts a live process's stdio pipes (or a TCP
// connection, in socket mode) to io.ReadWriteCloser, closing everything on
// Close and reaping the process so it doesn't leak as a zombie.
type processTransport struct {
	io.Reader
	io.Writer
	closer func() error
}

func (t *processTransport) Close() error { return t.closer() }

func (f *Factory) spawn(ctx context.Context, cfg Config) (io.ReadWriteCloser, *os.Process, error) {
	if cfg.Listen != "" {
		return f.spawnSocket(ctx, cfg)
	}
	return f.spawnStdio(ctx, cfg)
}

// spawnStdio pipes the adapter's stdin/stdout directly, the simpler of
// teacher's two transports and the default for adapters that speak DAP
// over their own process stdio (most do).
func (f *Factory) spawnStdio(ctx context.Context, cfg Config) (io.ReadWriteCloser, *os.Process, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	rw := &processTransport{Reader: stdout, Writer: stdin, closer: func() error {
		_ = stdin.Close()
		err := cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}}
	return rw, cmd.Process, nil
}

// spawnSocket is the generalization of go-delve-mcp-dap-server/tools.go's
// "dlv dap --listen :PORT" flow: start the adapter, read its stdout until
// the ready banner line, then dial the announced port.
func (f *Factory) spawnSocket(ctx context.Context, cfg Config) (io.ReadWriteCloser, *os.Process, error) {
	port := cfg.Port
	if port == "" {
		port = "9090"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	args := make([]string, len(cfg.Args))
	for i, a := range cfg.Args {
		args[i] = strings.ReplaceAll(a, "{port}", port)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	banner := cfg.ReadyBanner
	if banner == "" {
		banner = "DAP server listening at"
	}
	r := bufio.NewReader(stdout)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			_ = cmd.Process.Kill()
			return nil, nil, errors.Wrap(err, "adapterfactory: adapter exited before announcing its listener")
		}
		if strings.HasPrefix(line, banner) {
			break
		}
	}

	var conn net.Conn
	var dialErr error
	for attempt := 0; attempt < 20; attempt++ {
		conn, dialErr = net.Dial("tcp", "localhost"+port)
		if dialErr == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if dialErr != nil {
		_ = cmd.Process.Kill()
		return nil, nil, errors.Wrap(dialErr, "adapterfactory: dialing adapter listener")
	}

	rw := &processTransport{Reader: conn, Writer: conn, closer: func() error {
		_ = conn.Close()
		err := cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}}
	return rw, cmd.Process, nil
}

// DefaultClientID is the clientID every initialize request carries
// (spec.md §6).
const DefaultClientID = "fbdbg"
