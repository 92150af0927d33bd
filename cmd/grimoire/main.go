package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kestrelworks/grimoire/internal/analyzer"
	"github.com/kestrelworks/grimoire/internal/config"
	"github.com/kestrelworks/grimoire/internal/logging"
	"github.com/kestrelworks/grimoire/internal/mcp"
	"github.com/kestrelworks/grimoire/internal/pipeline"
	"github.com/kestrelworks/grimoire/internal/session"
	"github.com/kestrelworks/grimoire/internal/state"
	"github.com/kestrelworks/grimoire/internal/vault"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "compact": true, "discover": true,
	"session": true, "vault": true, "web": true,
	"help": true,
}

// runtimeDeps is everything the CLI and MCP surfaces share.
type runtimeDeps struct {
	db       *sql.DB
	cfg      *config.Config
	sessions *session.Store
	vault    *vault.Store
	pipe     *pipeline.Pipeline
	log      *zap.Logger
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    __ _ _ __(_)_ __ ___   ___  (_)_ __ ___
   / _` + "`" + ` | '__| | '_ ` + "`" + ` _ \ / _ \ | | '__/ _ \
  | (_| | |  | | | | | | | (_) || | | |  __/
   \__, |_|  |_|_| |_| |_|\___/ |_|_|  \___|
   |___/

  Session knowledge vault

  Usage: grimoire <command> [options]
         grimoire --help

  MCP server mode requires piped input.`)
}

// buildDeps initializes state, config, logging, and the pipeline.
func buildDeps(baseDir string) (*runtimeDeps, error) {
	db, err := state.Init(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = filepath.Join(baseDir, "grimoire.log")
	}
	log, err := logging.New(logFile)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	vaultDir := cfg.VaultDir
	if !filepath.IsAbs(vaultDir) {
		vaultDir = filepath.Join(cwd, vaultDir)
	}

	sessions := session.NewStore(db, state.SessionsDir(baseDir), cfg.RotationMaxBytes)
	v := vault.New(vaultDir)
	pipe := pipeline.New(pipeline.Deps{
		Sessions: sessions,
		Gateway:  analyzer.NewCLI(cfg, log),
		Vault:    v,
		Config:   cfg,
		Log:      log,
	})

	return &runtimeDeps{
		db:       db,
		cfg:      cfg,
		sessions: sessions,
		vault:    v,
		pipe:     pipe,
		log:      log,
	}, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before state init (no state needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".grimoire")

	deps, err := buildDeps(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer deps.db.Close()
	defer deps.log.Sync()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'grimoire --help' for usage.\n")
		os.Exit(1)
	}

	if unknown := mcp.ValidateDisabledTools(deps.cfg.DisabledTools); len(unknown) > 0 {
		deps.log.Warn("ignoring unknown disabled tools", zap.Strings("names", unknown))
	}

	// MCP server mode (default)
	if err := mcp.Run(deps.sessions, deps.pipe, deps.vault, deps.cfg, deps.log, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
