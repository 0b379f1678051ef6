package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	"github.com/anime-shed/pixelcheck-go/internal/config"
	"github.com/anime-shed/pixelcheck-go/internal/factory"
	"github.com/anime-shed/pixelcheck-go/internal/logger"
)

var (
	analyzeParallel bool
	analyzeWeights  string
	analyzeVertical string
	analyzeJobs     int
)

// fileReport is one line of analyze output.
type fileReport struct {
	File   string                   `json:"file"`
	Result *analyzer.AnalysisResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Classify image files with the local engine",
	Long: `Runs every feature extractor and the heuristic classifier on each file
and prints one JSON document per file, in argument order.

Examples:
  pixelcheck analyze photo.jpg
  pixelcheck analyze --parallel --weights weights.yaml *.png
  pixelcheck analyze --vertical strided scan.tiff`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeParallel, "parallel", false, "Run the extractors of each image concurrently")
	analyzeCmd.Flags().StringVar(&analyzeWeights, "weights", "", "YAML classifier weights file")
	analyzeCmd.Flags().StringVar(&analyzeVertical, "vertical", "", "Vertical symmetry measure: fixed, strided or perceptual")
	analyzeCmd.Flags().IntVarP(&analyzeJobs, "jobs", "j", runtime.NumCPU(), "Files analyzed at once")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if cmd.Flags().Changed("parallel") {
		cfg.ParallelExtractors = analyzeParallel
	}
	engine, err := newEngine(cfg, analyzeWeights, analyzeVertical)
	if err != nil {
		return err
	}
	defer engine.Close()

	reports := analyzeFiles(ctx, engine, args, analyzeJobs)
	if err := writeReports(cmd.OutOrStdout(), reports); err != nil {
		return err
	}

	for _, r := range reports {
		if r.Error != "" {
			return fmt.Errorf("%d of %d files failed", countFailed(reports), len(reports))
		}
	}
	return nil
}

// newEngine applies the flag overrides on top of the environment config.
func newEngine(c *config.Config, weights, vertical string) (*analyzer.Engine, error) {
	if weights != "" {
		c.ClassifierWeightsFile = weights
	}
	if vertical != "" {
		c.SymmetryVertical = strings.ToLower(vertical)
	}
	return factory.NewAnalyzerFactory(c).CreateAnalyzer()
}

// analyzeFiles keeps going past individual failures so every file gets a
// report.
func analyzeFiles(ctx context.Context, engine *analyzer.Engine, files []string, jobs int) []fileReport {
	reports := make([]fileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, file := range files {
		g.Go(func() error {
			reports[i] = analyzeFile(gctx, engine, file)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func analyzeFile(ctx context.Context, engine *analyzer.Engine, file string) fileReport {
	report := fileReport{File: file}
	data, err := os.ReadFile(file)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	result, err := engine.Analyze(ctx, data, contentTypeFor(file))
	if err != nil {
		logger.WithError(err).WithField("file", file).Warn("Analysis failed")
		report.Error = err.Error()
		return report
	}
	report.Result = result
	return report
}

func writeReports(w io.Writer, reports []fileReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func countFailed(reports []fileReport) int {
	n := 0
	for _, r := range reports {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// contentTypeFor is only a hint; the decoder sniffs the bytes anyway.
func contentTypeFor(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return ""
	}
}
