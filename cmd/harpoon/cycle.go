package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/engine"
	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/logging"
	"github.com/JakeFAU/harpoon/internal/scheduler"
	"github.com/JakeFAU/harpoon/internal/wire"
)

type cycleOptions struct {
	input         string
	format        string
	threshold     float64
	maxIterations int
	threads       int
	summaryOnly   bool
}

func newCycleCmd(root *rootOptions) *cobra.Command {
	opts := &cycleOptions{}
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one cycle over a batch of fragments",
		Long: `Reads a batch of fragments and prints the cycle result as JSON.

The input is a JSON array of {path, idx, lines, body} objects, a JSON object
{"fragments": [...], "hygiene_threshold": n, "max_iterations": n}, or the YAML
equivalent of either. Flags override values carried in the input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCycle(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVar(&opts.format, "format", "", "input format: json or yaml (default from the file extension)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "hygiene threshold (default cycle.default_threshold)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "iteration cap (default cycle.default_max_iterations)")
	cmd.Flags().IntVar(&opts.threads, "threads", 0, "worker threads (default engine.num_threads)")
	cmd.Flags().BoolVar(&opts.summaryOnly, "summary", false, "print only the summary")
	return cmd
}

func runCycle(cmd *cobra.Command, root *rootOptions, opts *cycleOptions) error {
	data, err := readInput(cmd, opts.input)
	if err != nil {
		return err
	}
	req, err := decodeBatch(data, inputFormat(opts.format, opts.input))
	if err != nil {
		return err
	}

	threshold, limit := req.Resolve(root.cfg.Cycle.DefaultThreshold, root.cfg.Cycle.DefaultMaxIterations)
	if cmd.Flags().Changed("threshold") {
		threshold = opts.threshold
	}
	if cmd.Flags().Changed("max-iterations") {
		if opts.maxIterations < 0 {
			return fmt.Errorf("--max-iterations must be >= 0")
		}
		limit = &opts.maxIterations
	}
	threads := root.cfg.Engine.Threads()
	if cmd.Flags().Changed("threads") {
		threads = &opts.threads
	}

	logger, err := logging.New(root.cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	eng, err := engine.New(engine.Options{
		MaxBatch:   root.cfg.Engine.Batch(),
		NumThreads: threads,
		Mode:       scheduler.Mode(root.cfg.Engine.Scheduler),
		Logger:     logger.Named("engine"),
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	result := eng.RunCycle(req.Fragments, threshold, limit)
	logger.Debug("cycle complete",
		zap.Int("fragments", len(req.Fragments)),
		zap.Int("iterations", result.Iterations),
		zap.Int("anchors", len(result.Anchors)),
	)

	var payload any = result
	if opts.summaryOnly {
		payload = fragment.Summarize(result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func inputFormat(explicit, path string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func decodeBatch(data []byte, format string) (wire.CycleRequest, error) {
	switch format {
	case "yaml":
		fragments, err := wire.DecodeYAMLFragments(data)
		if err != nil {
			return wire.CycleRequest{}, err
		}
		return wire.CycleRequest{Fragments: fragments}, nil
	case "json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			fragments, err := wire.DecodeFragments(trimmed)
			if err != nil {
				return wire.CycleRequest{}, err
			}
			return wire.CycleRequest{Fragments: fragments}, nil
		}
		return wire.DecodeCycleRequest(trimmed)
	default:
		return wire.CycleRequest{}, fmt.Errorf("unknown input format %q", format)
	}
}
