package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anime-shed/pixelcheck-go/internal/analyzer"
	"github.com/anime-shed/pixelcheck-go/internal/remote"
)

var reportOutput string

var remoteCmd = &cobra.Command{
	Use:   "remote FILE",
	Short: "Classify an image with the remote inference API",
	Long: `Uploads FILE to the inference API, polls until the result is ready and
prints it as JSON. Status changes are written to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemote,
}

var reportCmd = &cobra.Command{
	Use:   "report ID",
	Short: "Download the PDF report of a remote analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Destination file (default: ID.pdf)")
}

func newRemoteClient() *remote.Client {
	return remote.NewClient(cfg.RemoteAPIURL, remote.WithPolling(cfg.RemotePollAttempts, cfg.RemotePollInterval))
}

func runRemote(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	res, err := newRemoteClient().Analyze(ctx, data, filepath.Base(path), func(s remote.Status) {
		fmt.Fprintf(stderr, "status: %s\n", s)
	})
	if err != nil {
		fmt.Fprintf(stderr, "status: %s\n", remote.StatusFailed)
		return err
	}

	out := struct {
		*remote.Result
		Classification analyzer.Classification `json:"classification"`
	}{Result: res, Classification: res.Classification()}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	id := args[0]
	pdf, err := newRemoteClient().Report(ctx, id)
	if err != nil {
		return err
	}

	dest := reportOutput
	if dest == "" {
		dest = id + ".pdf"
	}
	if err := os.WriteFile(dest, pdf, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", dest, len(pdf))
	return nil
}
