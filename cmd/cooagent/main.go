// Cooagent is a question-answering agent for merchant operations data.
//
// It answers natural-language questions about sales velocity, inventory
// levels, and company policy by driving a tool-calling LLM over an
// imported product dataset and an ingested document knowledge base.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	cooagent ask <question>     Ask a single question
//	cooagent chat               Interactive question loop
//	cooagent import [dir]       Import merchant CSV exports into the dataset
//	cooagent ingest [path]      Ingest documents into the knowledge base
//	cooagent usage [days]       Summarize tool usage over the last N days
//	cooagent version            Print version and build information
//	cooagent -o json ask ...    Output the full response as JSON
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/merchantlabs/coo-agent/internal/agent"
	"github.com/merchantlabs/coo-agent/internal/buildinfo"
	"github.com/merchantlabs/coo-agent/internal/catalog"
	"github.com/merchantlabs/coo-agent/internal/config"
	"github.com/merchantlabs/coo-agent/internal/embeddings"
	"github.com/merchantlabs/coo-agent/internal/kb"
	"github.com/merchantlabs/coo-agent/internal/llm"
	"github.com/merchantlabs/coo-agent/internal/tools"
	"github.com/merchantlabs/coo-agent/internal/usage"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so that the
// full command lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the cooagent command. All OS-level
// dependencies are injected: ctx bounds the process lifetime, stdout
// and stderr receive program output, and args is os.Args[1:].
//
// Arguments are parsed by hand. The flag package relies on package-level
// globals (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: cooagent ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, strings.Join(cmdArgs, " "))
	case "chat":
		return runChat(ctx, stdout, stderr, configPath)
	case "import":
		dir := ""
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runImport(ctx, stdout, stderr, configPath, dir)
	case "ingest":
		path := ""
		if len(cmdArgs) > 0 {
			path = cmdArgs[0]
		}
		return runIngest(ctx, stdout, stderr, configPath, path)
	case "usage":
		days := 7
		if len(cmdArgs) > 0 {
			n, err := strconv.Atoi(cmdArgs[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("usage: cooagent usage [days]")
			}
			days = n
		}
		return runUsage(stdout, stderr, configPath, outputFmt, days)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// cooagent is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Cooagent - Merchant Operations Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: cooagent [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ask <question>  Ask a single question")
	fmt.Fprintln(w, "  chat            Interactive question loop")
	fmt.Fprintln(w, "  import [dir]    Import merchant CSVs (default: dataset.csv_dir)")
	fmt.Fprintln(w, "  ingest [path]   Ingest documents (default: knowledge_base.docs_dir)")
	fmt.Fprintln(w, "  usage [days]    Summarize tool usage (default: 7 days)")
	fmt.Fprintln(w, "  version         Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/cooagent/config.yaml, /etc/cooagent/config.yaml")
	return nil
}

// runAsk handles the "cooagent ask <question>" subcommand. It boots the
// full agent, answers a single question, and prints the response to
// stdout. With -o json the complete response, including the per-tool
// debug trail, is printed instead.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath, outputFmt, question string) error {
	cfg, logger, err := bootstrap(stderr, configPath)
	if err != nil {
		return err
	}

	loop, cleanup, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	resp := loop.Ask(ctx, question)

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(stdout, resp.Response)
	return nil
}

// runChat handles the "cooagent chat" subcommand: a line-oriented
// question loop on stdin. Each line is an independent query; "exit" or
// "quit" (or EOF) ends the session.
func runChat(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	cfg, logger, err := bootstrap(stderr, configPath)
	if err != nil {
		return err
	}

	loop, cleanup, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintln(stdout, "cooagent chat (type 'exit' to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		resp := loop.Ask(ctx, question)
		fmt.Fprintln(stdout, resp.Response)
		if resp.Debug.Error != "" {
			logger.Warn("run degraded", "error", resp.Debug.Error)
		}
	}
	fmt.Fprintln(stdout)
	return scanner.Err()
}

// runImport handles the "cooagent import [dir]" subcommand. It loads
// the four merchant CSV exports (products, inventory, orders, order
// items) into the dataset database, replacing any prior import.
func runImport(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath, dir string) error {
	cfg, logger, err := bootstrap(stderr, configPath)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Dataset.CSVDir
	}
	if dir == "" {
		return fmt.Errorf("no CSV directory given (set dataset.csv_dir or pass a path)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store, err := catalog.NewStore(cfg.CatalogDB())
	if err != nil {
		return fmt.Errorf("open dataset database: %w", err)
	}
	defer store.Close()

	logger.Info("importing merchant dataset", "dir", dir, "db", cfg.CatalogDB())
	if err := store.ImportDir(ctx, dir); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(stdout, "Imported merchant dataset from %s\n", dir)
	return nil
}

// runIngest handles the "cooagent ingest [path]" subcommand. It splits
// documents into passages, generates embeddings for each, and stores
// them in the knowledge base for the retrieval tool.
func runIngest(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath, path string) error {
	cfg, logger, err := bootstrap(stderr, configPath)
	if err != nil {
		return err
	}
	if path == "" {
		path = cfg.KnowledgeBase.DocsDir
	}
	if path == "" {
		return fmt.Errorf("no document path given (set knowledge_base.docs_dir or pass a path)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store, err := kb.NewStore(cfg.KnowledgeDB())
	if err != nil {
		return fmt.Errorf("open knowledge base: %w", err)
	}
	defer store.Close()

	embed := newEmbeddingsClient(cfg)
	logger.Info("ingesting documents", "path", path, "model", embed.Model())

	ingester := kb.NewIngester(store, embed,
		cfg.KnowledgeBase.ChunkSize, cfg.KnowledgeBase.ChunkOverlap, logger)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var count int
	if info.IsDir() {
		count, err = ingester.IngestDir(ctx, path)
	} else {
		count, err = ingester.IngestFile(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(stdout, "Successfully ingested %d passages from %s\n", count, path)
	return nil
}

// runUsage handles the "cooagent usage [days]" subcommand, printing
// aggregate tool invocation totals from the audit store.
func runUsage(stdout io.Writer, stderr io.Writer, configPath, outputFmt string, days int) error {
	cfg, _, err := bootstrap(stderr, configPath)
	if err != nil {
		return err
	}

	store, err := usage.NewStore(usageDB(cfg))
	if err != nil {
		return fmt.Errorf("open usage database: %w", err)
	}
	defer store.Close()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	total, err := store.Summarize(start, end)
	if err != nil {
		return fmt.Errorf("summarize usage: %w", err)
	}
	byTool, err := store.SummarizeByTool(start, end)
	if err != nil {
		return fmt.Errorf("summarize usage by tool: %w", err)
	}

	if outputFmt == "json" {
		out := map[string]any{
			"days":        days,
			"invocations": total.TotalInvocations,
			"errors":      total.TotalErrors,
			"duration_ms": total.TotalDuration.Milliseconds(),
			"by_tool":     map[string]any{},
		}
		tools := out["by_tool"].(map[string]any)
		for name, s := range byTool {
			tools[name] = map[string]any{
				"invocations": s.TotalInvocations,
				"errors":      s.TotalErrors,
				"duration_ms": s.TotalDuration.Milliseconds(),
			}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(stdout, "Tool usage over the last %d days:\n", days)
	fmt.Fprintf(stdout, "  %d invocations, %d errors, %s total\n",
		total.TotalInvocations, total.TotalErrors, total.TotalDuration.Round(time.Millisecond))

	names := make([]string, 0, len(byTool))
	for name := range byTool {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := byTool[name]
		fmt.Fprintf(stdout, "  %-36s %5d calls  %3d errors  %s\n",
			name, s.TotalInvocations, s.TotalErrors, s.TotalDuration.Round(time.Millisecond))
	}
	return nil
}

// bootstrap loads configuration and builds the logger every subcommand
// shares. When no config file exists anywhere in the search path, the
// built-in defaults are used so one-shot commands still work.
func bootstrap(stderr io.Writer, configPath string) (*config.Config, *slog.Logger, error) {
	var cfg *config.Config

	cfgPath, err := config.FindConfig(configPath)
	switch {
	case err == nil:
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
	case configPath != "":
		// An explicit -config path must exist.
		return nil, nil, err
	default:
		cfg = config.Default()
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, err = config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
	}
	logger := newLogger(stderr, level)

	if cfgPath != "" {
		logger.Debug("config loaded", "path", cfgPath)
	} else {
		logger.Debug("no config file found, using defaults")
	}
	return cfg, logger, nil
}

// buildAgent wires the full question-answering stack: LLM client,
// dataset tools, knowledge base retrieval, and the orchestration loop.
// The returned cleanup closes every store the agent opened.
func buildAgent(cfg *config.Config, logger *slog.Logger) (*agent.Loop, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	client, err := newLLMClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	catalogStore, err := catalog.NewStore(cfg.CatalogDB())
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset database: %w", err)
	}
	closers = append(closers, catalogStore)

	kbStore, err := kb.NewStore(cfg.KnowledgeDB())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open knowledge base: %w", err)
	}
	closers = append(closers, kbStore)

	usageStore, err := usage.NewStore(usageDB(cfg))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open usage database: %w", err)
	}
	closers = append(closers, usageStore)

	// The registry is built in full, then sealed. Registration order is
	// the order the model sees the tools in; retrieval goes last.
	reg := tools.NewRegistry()
	if err := catalog.RegisterTools(reg, catalogStore); err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := reg.Register(kb.Tool(kbStore, newEmbeddingsClient(cfg), cfg.KnowledgeBase.TopK, logger)); err != nil {
		cleanup()
		return nil, nil, err
	}
	reg.Seal()

	loop := agent.New(client, cfg.Models.Default, reg,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithTimeout(cfg.Agent.Timeout()),
		agent.WithUsageStore(usageStore),
		agent.WithLogger(logger),
	)

	logger.Info("agent initialized",
		"model", cfg.Models.Default,
		"provider", cfg.Models.Provider,
		"tools", reg.Len(),
	)
	return loop, cleanup, nil
}

// newLLMClient builds the chat client for the configured provider.
func newLLMClient(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	switch cfg.Models.Provider {
	case "", "ollama":
		return llm.NewOllamaClient(cfg.Models.OllamaURL, logger), nil
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but anthropic.api_key is not set")
		}
		return llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %q", cfg.Models.Provider)
	}
}

// newEmbeddingsClient builds the embedding client, defaulting the base
// URL to the Ollama chat endpoint when not set separately.
func newEmbeddingsClient(cfg *config.Config) *embeddings.Client {
	baseURL := cfg.Embeddings.BaseURL
	if baseURL == "" {
		baseURL = cfg.Models.OllamaURL
	}
	return embeddings.New(baseURL, cfg.Embeddings.Model)
}

// usageDB returns the tool invocation audit database path.
func usageDB(cfg *config.Config) string {
	return cfg.DataDir + "/usage.db"
}

// newLogger creates a structured text logger writing to w at the given
// level. All log output goes through slog; subcommands log to stderr so
// stdout carries only command output.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}
