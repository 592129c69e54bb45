// Command graphmind answers natural-language questions over a property
// graph.
//
// Usage:
//
//	graphmind ask "Who developed the theory of relativity?" --config config.yaml
//	graphmind batch questions.txt --config config.yaml
//	graphmind schema --config config.yaml
//	graphmind validate --config config.yaml
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/reasoning"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Ask      AskCmd      `cmd:"" help:"Answer a single question."`
	Batch    BatchCmd    `cmd:"" help:"Answer a file of questions, one per line."`
	Schema   SchemaCmd   `cmd:"" help:"Inspect the graph schema."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	Data     string `short:"d" help:"Graph data file (JSON) loaded into the store at startup." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("graphmind version %s\n", version)
	return nil
}

// AskCmd answers one question and prints the result.
type AskCmd struct {
	Question string `arg:"" help:"The question to answer."`
	JSON     bool   `help:"Print the full result as JSON."`
	Evidence bool   `help:"Print the supporting evidence lines."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, engine, err := setup(cli)
	if err != nil {
		return err
	}
	defer engine.Shutdown(context.Background())

	session := engine.NewSession()
	defer session.Cancel()

	result, err := session.Ask(ctx, c.Question)
	if err != nil {
		return err
	}
	return printResult(result, c.JSON, c.Evidence)
}

// BatchCmd answers every non-empty line of a question file.
type BatchCmd struct {
	File string `arg:"" help:"File with one question per line." type:"path"`
	JSON bool   `help:"Print results as a JSON array."`
}

func (c *BatchCmd) Run(cli *CLI) error {
	questions, err := readQuestions(c.File)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no questions in %s", c.File)
	}

	ctx, engine, err := setup(cli)
	if err != nil {
		return err
	}
	defer engine.Shutdown(context.Background())

	session := engine.NewSession()
	defer session.Cancel()

	results := session.AskBatch(ctx, questions)
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, result := range results {
		fmt.Printf("[%d] %s\n    %s\n", i+1, result.Question, result.Answer)
	}
	return nil
}

// SchemaCmd prints the profiled graph schema.
type SchemaCmd struct {
	JSON bool `help:"Print the schema as JSON."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	ctx, engine, err := setup(cli)
	if err != nil {
		return err
	}
	defer engine.Shutdown(context.Background())

	sch := engine.Schema(ctx)
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sch)
	}
	fmt.Print(sch.Describe())
	if sch.Degraded {
		fmt.Println("(degraded: store introspection unavailable)")
	}
	return nil
}

// ValidateCmd checks a configuration file without starting the engine.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("validate requires --config")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s: OK\n", cli.Config)
	return nil
}

// setup loads configuration, builds the engine and installs signal-driven
// cancellation.
func setup(cli *CLI) (context.Context, *reasoning.Engine, error) {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	engine, err := reasoning.NewEngine(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	if cli.Data != "" {
		if err := loadGraphFile(ctx, engine.Store(), cli.Data); err != nil {
			engine.Shutdown(context.Background())
			cancel()
			return nil, nil, err
		}
		engine.RefreshSchema()
	}
	return ctx, engine, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// graphFile is the on-disk JSON graph format the --data flag loads.
type graphFile struct {
	Entities  []*graph.Entity   `json:"entities"`
	Relations []*graph.Relation `json:"relations"`
}

func loadGraphFile(ctx context.Context, store graph.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read graph file: %w", err)
	}
	var gf graphFile
	if err := json.Unmarshal(raw, &gf); err != nil {
		return fmt.Errorf("failed to parse graph file %s: %w", path, err)
	}

	switch s := store.(type) {
	case *graph.MemoryStore:
		for _, e := range gf.Entities {
			s.AddEntity(e)
		}
		for _, r := range gf.Relations {
			s.AddRelation(r)
		}
	case *graph.SQLiteStore:
		for _, e := range gf.Entities {
			if err := s.AddEntity(ctx, e); err != nil {
				return fmt.Errorf("failed to load entity %s: %w", e.ID, err)
			}
		}
		for _, r := range gf.Relations {
			if err := s.AddRelation(ctx, r); err != nil {
				return fmt.Errorf("failed to load relation %s-%s: %w", r.SourceID, r.TargetID, err)
			}
		}
	default:
		return fmt.Errorf("store type %s does not accept data loading", store.DatabaseType())
	}

	slog.Info("graph data loaded",
		"entities", len(gf.Entities), "relations", len(gf.Relations), "file", path)
	return nil
}

func printResult(result *reasoning.ReasoningResult, asJSON, withEvidence bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.Answer)
	if result.Fallback {
		fmt.Println("(fallback answer)")
	}
	if result.Cancelled {
		fmt.Println("(cancelled)")
	}
	fmt.Printf("confidence: %.2f, elapsed: %s\n", result.Confidence, result.Elapsed)
	if withEvidence {
		for _, ev := range result.Evidences {
			fmt.Println("  " + ev)
		}
	}
	return nil
}

func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question file: %w", err)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			questions = append(questions, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}
	return questions, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("graphmind"),
		kong.Description("Natural-language question answering over a property graph."),
		kong.UsageOnError(),
	)
	setupLogging(cli.LogLevel)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
