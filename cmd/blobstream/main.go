package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ligustah/blobstream/pkg/chunked"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitNotFound     = 3
	ExitFetchFailed  = 4
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// globalFlags are shared by all subcommands.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "blobstream",
		Short: "Stream large objects using concurrent range requests",
		Long: `blobstream reads a large object from S3, GCS or any HTTP server that
supports range requests. The object is fetched as fixed size chunks over
several connections and written out strictly in order.

Sources:
  s3://bucket?region=...   Amazon S3 or compatible (with --object)
  gs://bucket              Google Cloud Storage (with --object)
  mem://                   In-memory bucket (testing)
  https://host/path        Any HTTP server with range support`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newGetCmd(&g, stdout, stderr),
		newStatCmd(&g, stdout, stderr),
	)

	return cmd
}

// usageError marks errors caused by bad flags or configuration.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{err: fmt.Errorf("%s takes no arguments, got %q", cmd.CommandPath(), args)}
	}
	return nil
}

func exitCode(err error) int {
	var uerr *usageError
	var ferr *chunked.FetchError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &uerr):
		return ExitInvalidArgs
	case errors.Is(err, chunked.ErrNotFound):
		return ExitNotFound
	case errors.As(err, &ferr):
		return ExitFetchFailed
	default:
		return ExitGeneralError
	}
}
