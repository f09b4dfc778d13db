// Command jdeser decodes one or more Java Object Serialization streams
// and prints their class declarations, content list, and instance
// dumps, optionally extracting block-data payloads to disk.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/kbinani/jdeser/internal/blockio"
	"github.com/kbinani/jdeser/internal/options"
	"github.com/kbinani/jdeser/internal/printer"
	"github.com/kbinani/jdeser/jdeser"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := options.Parse(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, options.Usage())
		return 1
	}

	if cfg.Help {
		fmt.Fprint(stdout, options.Usage())
		return 1
	}

	if len(cfg.Files) == 0 {
		fmt.Fprintln(stderr, "jdeser: no input files")
		fmt.Fprint(stderr, options.Usage())
		return 1
	}

	var filter *regexp.Regexp
	if cfg.Filter != "" {
		filter, err = regexp.Compile(cfg.Filter)
		if err != nil {
			fmt.Fprintf(stderr, "jdeser: invalid -filter regex: %s\n", err)
			return 1
		}
	}

	logger := zap.NewNop()
	if cfg.Debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(stderr, "jdeser: could not initialize logger: %s\n", err)
			return 1
		}
		defer l.Sync()
		logger = l
	}

	ctx := context.Background()

	failed := false
	for _, path := range cfg.Files {
		if err := processFile(ctx, path, cfg, filter, logger, stdout); err != nil {
			fmt.Fprintf(stderr, "jdeser: %s: %s\n", path, err)
			failed = true
			continue
		}
	}

	if failed {
		return 1
	}
	return 0
}

func processFile(ctx context.Context, path string, cfg *options.Config, filter *regexp.Regexp, logger *zap.Logger, stdout io.Writer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	result, err := jdeser.Parse(f,
		jdeser.WithReconnect(!cfg.NoConnect),
		jdeser.WithLogger(logger),
		jdeser.WithMaxBlockSize(cfg.MaxBlockSize),
	)
	if err != nil {
		return fmt.Errorf("parsing stream: %w", err)
	}

	fmt.Fprintf(stdout, "=== %s ===\n", path)
	p := printer.New(stdout, printer.Options{
		NoContent:   cfg.NoContent,
		NoClasses:   cfg.NoClasses,
		NoInstances: cfg.NoInstances,
		ShowArrays:  cfg.ShowArrays,
		FixNames:    cfg.FixNames,
		Filter:      filter,
	})
	if err := p.Print(result); err != nil {
		return fmt.Errorf("printing result: %w", err)
	}

	if cfg.BlockData != "" || cfg.BlockDataManifest != "" {
		extractor := blockio.NewExtractor()
		extractor.Collect(result)

		if cfg.BlockData != "" {
			if err := extractor.WriteData(cfg.BlockData); err != nil {
				return fmt.Errorf("writing block data: %w", err)
			}
		}
		if cfg.BlockDataManifest != "" {
			if err := extractor.WriteManifest(cfg.BlockDataManifest, path); err != nil {
				return fmt.Errorf("writing block data manifest: %w", err)
			}
		}
	}

	return nil
}
