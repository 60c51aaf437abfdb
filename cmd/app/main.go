package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/hypermind/internal"
	"github.com/starford/hypermind/internal/models"
	pkgconfig "github.com/starford/hypermind/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")

	// An explicitly named file must exist; the default one is optional.
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// clientOptions collects the options shared by the session commands.
func clientOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithHypergraph(cmd.String("hypergraph")),
	}
	if server := cmd.String("server"); server != "" {
		opts = append(opts, internal.WithServer(server))
	}
	return opts, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, version, internal.WithConfig(cfg))
}

func generate(ctx context.Context, cmd *cli.Command) error {
	input := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("generate: input text or URL is required")
	}
	opts, err := clientOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunGenerate(ctx, input, opts...)
}

func add(ctx context.Context, cmd *cli.Command) error {
	symbols := cmd.Args().Slice()
	if len(symbols) == 0 {
		return fmt.Errorf("add: at least one symbol is required")
	}
	opts, err := clientOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunAdd(ctx, symbols, opts...)
}

func graph(ctx context.Context, cmd *cli.Command) error {
	opts, err := clientOptions(cmd)
	if err != nil {
		return err
	}
	filters := append(cmd.StringSlice("filter"), cmd.Args().Slice()...)
	return internal.RunGraph(ctx, internal.GraphQuery{
		Filters:      filters,
		Interwingle:  int(cmd.Int("interwingle")),
		Depth:        int(cmd.Int("depth")),
		Deeper:       int(cmd.Int("deeper")),
		Tutorial:     cmd.Bool("tutorial"),
		ToggleLabels: cmd.Bool("toggle-labels"),
		Symbols:      cmd.Bool("symbols"),
	}, opts...)
}

func settingsCmd(ctx context.Context, cmd *cli.Command) error {
	opts, err := clientOptions(cmd)
	if err != nil {
		return err
	}
	llm := models.LLM{Service: cmd.String("service"), Model: cmd.String("model")}
	return internal.RunSettings(ctx, llm, opts...)
}

func export(ctx context.Context, cmd *cli.Command) error {
	opts, err := clientOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunExport(ctx, opts...)
}

func shot(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("shot: one of orbit, flyby, zoom is required")
	}
	opts, err := clientOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunShot(ctx, name, opts...)
}

func wormhole(ctx context.Context, cmd *cli.Command) error {
	opts, err := clientOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunWormhole(ctx, opts...)
}

func main() {
	clientFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Base URL of a running hypermind server; the local store is used when empty",
			Sources: cli.EnvVars("HYPERMIND_SERVER"),
		},
		&cli.StringFlag{
			Name:    "hypergraph",
			Aliases: []string{"g"},
			Usage:   "Hypergraph id to work on; a new one is created when empty or unknown",
			Sources: cli.EnvVars("HYPERMIND_HYPERGRAPH"),
		},
	}

	cmd := &cli.Command{
		Name:    "hypermind",
		Usage:   "Generate, explore and traverse knowledge hypergraphs",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the hypergraph tools over stdio (MCP)",
				Action: mcp,
			},
			{
				Name:      "generate",
				Usage:     "Generate hyperedges from text or a URL",
				ArgsUsage: "<text|url>",
				Flags:     clientFlags,
				Action:    generate,
			},
			{
				Name:      "add",
				Usage:     "Save symbols as one hyperedge",
				ArgsUsage: "<symbol> [symbol...]",
				Flags:     clientFlags,
				Action:    add,
			},
			{
				Name:      "graph",
				Aliases:   []string{"search"},
				Usage:     "Print a filtered view of the hypergraph",
				ArgsUsage: "[term...]",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "Filter term; +term joins the last group, -term removes it (use --filter=-term)",
					},
					&cli.IntFlag{
						Name:  "interwingle",
						Usage: "Interwingle level 0-3",
						Value: -1,
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Traversal depth",
						Value: -1,
					},
					&cli.IntFlag{
						Name:  "deeper",
						Usage: "Raise the depth this many steps",
					},
					&cli.BoolFlag{
						Name:  "tutorial",
						Usage: "Fill an empty hypergraph with the tutorial",
					},
					&cli.BoolFlag{
						Name:  "toggle-labels",
						Usage: "Flip label visibility",
					},
					&cli.BoolFlag{
						Name:  "symbols",
						Usage: "Also print every symbol",
					},
				}, clientFlags...),
				Action: graph,
			},
			{
				Name:  "settings",
				Usage: "Show or change the language model selection",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "service",
						Usage: "Service to save (offline, openai, ...); prints the current selection when empty",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Model to save",
					},
				}, clientFlags...),
				Action: settingsCmd,
			},
			{
				Name:   "export",
				Usage:  "Save the hypergraph as CSV",
				Flags:  clientFlags,
				Action: export,
			},
			{
				Name:      "shot",
				Usage:     "Play a scripted camera shot and record its track",
				ArgsUsage: "<orbit|flyby|zoom>",
				Flags:     clientFlags,
				Action:    shot,
			},
			{
				Name:   "wormhole",
				Usage:  "Fly into the nearest node and generate a new hypergraph from it",
				Flags:  clientFlags,
				Action: wormhole,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
