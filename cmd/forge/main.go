package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
	"github.com/roninrabbat-maker/adventure-forge/internal/export"
	"github.com/roninrabbat-maker/adventure-forge/internal/generation"
	"github.com/roninrabbat-maker/adventure-forge/internal/kv"
	"github.com/roninrabbat-maker/adventure-forge/internal/mcp"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
	"github.com/roninrabbat-maker/adventure-forge/internal/session"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"play": true, "saves": true, "export": true, "import": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
   ___                  _
  | __|__ _ _ __ _ ___ | |
  | _/ _ \ '_/ _' / -_)|_|
  |_|\___/_| \__, \___|(_)
             |___/
  Adventure Forge: narrative RPG sessions

  Usage: forge <command> [options]
         forge play
         forge --help

  MCP server mode requires piped input.`)
}

// runtime is everything a command needs, opened once per process.
type runtime struct {
	baseDir string
	cfg     *config.Config
	store   kv.Store
	saves   *saves.Repository
	engine  *session.Engine
	policy  export.Policy
	logger  *log.Logger
}

// openRuntime loads configuration and wires store, repository, generation
// service and engine together.
func openRuntime(baseDir, workDir string) (*runtime, error) {
	cfg, err := config.LoadWithRepo(baseDir, workDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := log.New(os.Stderr, "forge: ", log.LstdFlags)

	store, err := kv.Open(cfg, baseDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	repo := saves.New(store, cfg.Store.Key,
		saves.WithMaxSlots(cfg.MaxSaveSlots),
		saves.WithLogger(logger),
	)
	llm := generation.NewOpenAI(cfg.LLM, 0)
	engine := session.New(llm, llm, repo,
		session.WithConfig(cfg),
		session.WithLogger(logger),
	)

	return &runtime{
		baseDir: baseDir,
		cfg:     cfg,
		store:   store,
		saves:   repo,
		engine:  engine,
		policy:  export.NewPolicy(baseDir, cfg),
		logger:  logger,
	}, nil
}

func (rt *runtime) Close() error {
	if rt == nil || rt.store == nil {
		return nil
	}
	return rt.store.Close()
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need no store.
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(os.Args) >= 2 && !isCLIMode(os.Args) && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'forge --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	workDir, err := os.Getwd()
	if err != nil {
		workDir = homeDir
	}

	rt, err := openRuntime(filepath.Join(homeDir, ".forge"), workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	if isCLIMode(os.Args) {
		app := newCLIApp(rt)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			rt.Close()
			os.Exit(1)
		}
		return
	}

	deps := mcp.Deps{Engine: rt.engine, Saves: rt.saves, Policy: rt.policy}
	if err := mcp.Run(deps, rt.cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		rt.Close()
		os.Exit(1)
	}
}
