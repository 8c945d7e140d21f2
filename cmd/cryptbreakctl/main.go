package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RowanDark/cryptbreak/internal/bootstrap"
	"github.com/RowanDark/cryptbreak/internal/config"
	"github.com/RowanDark/cryptbreak/internal/rpc"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

const cliBanner = "cryptbreak CLI (cryptbreakctl)"

var version = "dev"

const usageText = `usage: cryptbreakctl [flags] <command> [args]

commands:
  list                       list the available tools
  call <tool> [params]       run a tool; params is JSON, @file or - for stdin
  cache stats|clear          inspect or reset the caches
  config print               print the resolved configuration
  api-token new [flags]      mint a REST API token from a running daemon
  version                    print the version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli carries the streams and global flags shared by every command.
type cli struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	cfg     config.Config
	remote  string
	token   string
	timeout time.Duration
	prompt  bool
}

// backend is either the in-process registry or a remote daemon.
type backend interface {
	List(ctx context.Context) ([]tools.Info, error)
	Invoke(ctx context.Context, tool string, params []byte) (tools.Result, error)
	Close() error
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr, cfg: cfg}
	fs := flag.NewFlagSet("cryptbreakctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, cliBanner)
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, usageText)
		fmt.Fprintln(stderr, "\nflags:")
		fs.PrintDefaults()
	}
	fs.StringVar(&c.remote, "remote", "", "gRPC address of a cryptbreakd daemon (default: run tools in-process)")
	fs.StringVar(&c.token, "token", cfg.AuthToken, "bearer token for the remote daemon")
	fs.DurationVar(&c.timeout, "timeout", 0, "overall deadline for the command (0 disables)")
	fs.BoolVar(&c.prompt, "prompt", true, "ask on the terminal for missing decryption keys (local mode only)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	switch rest[0] {
	case "list":
		return c.runList(ctx, rest[1:])
	case "call":
		return c.runCall(ctx, rest[1:])
	case "cache":
		return c.runCache(ctx, rest[1:])
	case "config":
		return c.runConfig(rest[1:])
	case "api-token":
		if len(rest) < 2 || rest[1] != "new" {
			fmt.Fprintln(stderr, "usage: cryptbreakctl api-token new [flags]")
			return 2
		}
		return c.runAPITokenNew(ctx, rest[2:])
	case "version":
		fmt.Fprintf(stdout, "cryptbreakctl %s\n", version)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", rest[0])
		fs.Usage()
		return 2
	}
}

// connect opens the backend selected by --remote. allowPrompt is false when
// stdin already carries the tool parameters.
func (c *cli) connect(allowPrompt bool) (backend, error) {
	if addr := strings.TrimSpace(c.remote); addr != "" {
		client, err := rpc.Dial(addr, c.token)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	opts := []bootstrap.Option{
		bootstrap.WithComponent("cryptbreakctl"),
		bootstrap.WithLogOutput(c.stderr),
	}
	if c.prompt && allowPrompt {
		opts = append(opts, bootstrap.WithProvider(newPromptProvider(c.stdin, c.stderr)))
	}
	rt, err := bootstrap.New(c.cfg, opts...)
	if err != nil {
		return nil, err
	}
	return localBackend{rt}, nil
}

type localBackend struct {
	rt *bootstrap.Runtime
}

func (l localBackend) List(context.Context) ([]tools.Info, error) {
	return l.rt.Registry.List(), nil
}

func (l localBackend) Invoke(ctx context.Context, tool string, params []byte) (tools.Result, error) {
	return l.rt.Registry.Invoke(ctx, tool, params)
}

func (l localBackend) Close() error {
	return l.rt.Close()
}
