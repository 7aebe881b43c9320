// Command falken-export writes recorded episodes from the persistent store
// into the artifact store as JSON or CSV documents.
//
// Storage and artifact backends are selected with the FALKEN_STORAGE_* and
// FALKEN_BLOB_* environment variables.
package main

import (
	"context"
	"falken/internal/adapters/episodes"
	"falken/internal/blob"
	"falken/internal/core"
	"falken/pkg/diag"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

var exitFunc = os.Exit

func main() {
	code := cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type options struct {
	brain       string
	formats     []episodes.Format
	includeOpen bool
	force       bool
	verbose     bool
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("falken-export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		opts    options
		formats string
	)
	fs.StringVar(&opts.brain, "brain", "", "export only episodes of this brain id")
	fs.StringVar(&formats, "format", "json", "comma separated artifact formats (json, csv)")
	fs.BoolVar(&opts.includeOpen, "include-open", false, "also export episodes that are still open")
	fs.BoolVar(&opts.force, "force", false, "replace artifacts that already exist")
	fs.BoolVar(&opts.verbose, "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	for _, name := range strings.Split(formats, ",") {
		f, err := episodes.ParseFormat(strings.TrimSpace(name))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "falken-export: %v\n", err)
			return 2
		}
		opts.formats = append(opts.formats, f)
	}

	report, err := run(ctx, opts, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Export failed: %v\n", err)
		return 1
	}
	for _, info := range report.Written {
		_, _ = fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", info.Key, info.Size)
	}
	for _, key := range report.Skipped {
		_, _ = fmt.Fprintf(stdout, "skipped %s (exists)\n", key)
	}
	if err := report.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Export incomplete: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "%d written, %d skipped\n", len(report.Written), len(report.Skipped))
	return 0
}

func run(ctx context.Context, opts options, stderr io.Writer) (report episodes.Report, err error) {
	logOpts := []diag.Option{diag.WithOutput(stderr), diag.WithAbortOnFatal(false)}
	if opts.verbose {
		logOpts = append(logOpts, diag.WithLevel(diag.LevelDebug))
	}
	log := diag.FromEnv(logOpts...)

	store, err := core.OpenPersistentStore(ctx)
	if err != nil {
		return episodes.Report{}, fmt.Errorf("open store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer func() {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close store: %w", cerr)
			}
		}()
	}
	blobs, err := blob.Open(ctx)
	if err != nil {
		return episodes.Report{}, fmt.Errorf("open artifact store: %w", err)
	}
	exporter := episodes.NewExporter(store, blobs,
		episodes.WithFormats(opts.formats...),
		episodes.WithLogger(log),
	)
	return exporter.Export(ctx, episodes.Filter{
		BrainID:     opts.brain,
		IncludeOpen: opts.includeOpen,
		Force:       opts.force,
	})
}
