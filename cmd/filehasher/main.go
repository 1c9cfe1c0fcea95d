package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"filehasher/internal/config"
	ferrors "filehasher/internal/errors"
	"filehasher/internal/logging"
	"filehasher/internal/state"
)

var version = "dev"

// Output streams; tests swap them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("no command provided")
	}

	cmd := args[0]
	switch cmd {
	case "hash":
		return handleHash(ctx, args[1:])
	case "verify":
		return handleVerify(ctx, args[1:])
	case "history":
		return handleHistory(ctx, args[1:])
	case "algorithms":
		return handleAlgorithms(ctx, args[1:])
	case "config":
		return handleConfig(ctx, args[1:])
	case "doctor":
		return handleDoctor(ctx, args[1:])
	case "completion":
		return handleCompletion(ctx, args[1:])
	case "version", "--version":
		fmt.Fprintln(stdout, version)
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func usage() {
	fmt.Fprintln(stdout, strings.TrimSpace(`filehasher - streaming multi-algorithm file digests

Usage:
  filehasher <command> [flags]

Commands:
  hash              Compute digests of files, directories (-r) or --text (MD5, SHA-1, SHA-256, SHA-384, SHA-512 by default)
  verify            Check files against an expected digest, a checksum file, a manifest, sidecars, or the ledger (--all)
  history           List digests recorded in the ledger
  algorithms        List supported algorithms
  config validate   Validate a YAML config file
  config print      Print the loaded config
  doctor            Diagnose config and ledger; prune, vacuum or back up the ledger
  completion        Generate shell completion scripts (bash|zsh|fish)
  version           Print version
  help              Show this help

Flags:
  --config PATH     Path to YAML config file (or FILEHASHER_CONFIG env var; default: ~/.config/filehasher/config.yml)
  --log-level L     Log level: debug|info|warn|error (per command)
  --json-logs       JSON log output (per command)
`))
}

// globalFlags are registered on every subcommand.
type globalFlags struct {
	fs       *pflag.FlagSet
	config   string
	logLevel string
	jsonLogs bool
}

func newFlagSet(name string) (*pflag.FlagSet, *globalFlags) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	g := &globalFlags{fs: fs}
	fs.StringVar(&g.config, "config", "", "Path to YAML config file")
	fs.StringVar(&g.logLevel, "log-level", "", "log level (overrides logging.level)")
	fs.BoolVar(&g.jsonLogs, "json-logs", false, "json logs")
	return fs, g
}

// parse handles --help the way the other commands expect: print usage and
// stop without an error.
func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// load resolves and loads the config, then builds the logger from it and
// the command line.
func (g *globalFlags) load() (*config.Config, *logging.Logger, error) {
	path := config.ResolvePath(g.config)
	explicit := g.config != "" || os.Getenv("FILEHASHER_CONFIG") != ""
	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ferrors.ConfigNotFound(path).WithDetails(err)
		}
		return nil, nil, err
	}
	level := cfg.Logging.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	jsonOut := g.jsonLogs || cfg.Logging.Format == "json"
	return cfg, logging.NewWriter(stderr, level, jsonOut), nil
}

// openLedger opens the digest ledger, or returns nil when general.data_root
// is unset.
func openLedger(cfg *config.Config) (*state.DB, error) {
	if cfg.General.DataRoot == "" {
		return nil, nil
	}
	st, err := state.Open(cfg)
	if err != nil {
		return nil, ferrors.DatabaseError(err)
	}
	return st, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
