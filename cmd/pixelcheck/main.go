// Command pixelcheck classifies images from the command line, either with the
// local engine or through the remote inference API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/anime-shed/pixelcheck-go/internal/config"
	"github.com/anime-shed/pixelcheck-go/internal/logger"
)

var (
	verbose bool
	timeout time.Duration
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pixelcheck",
	Short: "PixelCheck - image forensics from the terminal",
	Long: `pixelcheck inspects images and classifies them as real photographs,
AI-generated images or graphic designs.

The analyze command runs the local heuristic engine. The remote and report
commands talk to the inference API configured by PIXELCHECK_API_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.UseTextFormatter()
		var err error
		if cfg, err = config.LoadFromEnv(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if verbose {
			logger.SetLevel("debug")
		} else {
			logger.SetLevel(cfg.LogLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
