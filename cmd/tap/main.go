package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"go-stream-extract/internal/model"
	"go-stream-extract/internal/pipeline"
	"go-stream-extract/internal/source"
)

func main() {
	configPath := flag.String("config", "", "path to the extraction config (required)")
	statePath := flag.String("state", "", "path to a state document from a previous run")
	outPath := flag.String("out", "", "write messages to this file instead of stdout")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: tap -config config.json [-state state.json] [-out messages.jsonl]")
		os.Exit(2)
	}

	if err := run(*configPath, *statePath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, statePath, outPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := model.DecodeTapConfig(data)
	if err != nil {
		return err
	}

	state := pipeline.NewMemoryState()
	if statePath != "" {
		stateData, err := os.ReadFile(statePath)
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}
		state, err = pipeline.LoadMemoryState(stateData)
		if err != nil {
			return err
		}
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := source.BuildRegistry(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	summary, err := pipeline.Run(ctx, uuid.New().String(), cfg, pipeline.Deps{
		Registry: registry,
		Emitter:  pipeline.NewEmitter(out),
		State:    state,
	})
	if summary != nil {
		summary.Print()
	}
	return err
}
