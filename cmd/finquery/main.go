// Command finquery is the CLI for the finquery-engine pipeline core.
//
// Usage:
//
//	finquery run --config finquery.yaml "how did revenue trend by region last quarter?"
//	finquery validate --config finquery.yaml
//	finquery version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/finqueryai/finquery-engine/config"
	"github.com/finqueryai/finquery-engine/facade"
	"github.com/finqueryai/finquery-engine/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Run the pipeline once against a query."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"finquery.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (accepted but currently ignored; output is always text)." default:"simple"`
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
	fmt.Printf("finquery-engine version %s\n", version)
	return nil
}

// ValidateCmd loads and validates a configuration file without running
// anything against it.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	_, err := config.LoadConfig(cli.Config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Printf("%s is valid\n", cli.Config)
	return nil
}

// RunCmd runs the pipeline once against a single natural-language query.
type RunCmd struct {
	Query  string `arg:"" help:"Natural-language question to answer."`
	Stream bool   `help:"Print one state snapshot per pipeline stage instead of only the final result."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := facade.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer engine.Close()

	if c.Stream {
		snapshots, err := engine.StreamPipeline(ctx, c.Query)
		if err != nil {
			return err
		}
		for snap := range snapshots {
			printJSON(snap)
		}
		return nil
	}

	result, err := engine.RunPipeline(ctx, c.Query)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	printJSON(result)
	return nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("finquery"),
		kong.Description("Turn natural-language financial questions into executable analytical reports."),
		kong.UsageOnError(),
	)

	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		ctx.FatalIfErrorf(err)
		defer cleanup()
		output = file
	}

	level, err := logger.ParseLevel(cli.LogLevel)
	ctx.FatalIfErrorf(err)
	logger.Init(level, output, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
