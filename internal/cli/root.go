// Package cli implements nprctl, the operator command line for the
// non-payment reason service.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
)

// options are the flags shared by every command.
type options struct {
	apiURL   string
	account  string
	timeZone string
	timeout  time.Duration
	logLevel string
}

func (o *options) client() *APIClient {
	return NewAPIClient(o.apiURL, o.account, o.timeout)
}

func (o *options) location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.timeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", o.timeZone, err)
	}
	return loc, nil
}

func (o *options) logger(w io.Writer) *logger.Logger {
	return logger.New(logger.Config{
		Level:       o.logLevel,
		Environment: "development",
		ServiceName: "nprctl",
		Output:      w,
	})
}

// NewRootCommand builds the nprctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "nprctl",
		Short:         "Record and review non-payment reasons",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", envOr("NPR_API_URL", "http://localhost:8086"), "Service base URL")
	flags.StringVar(&opts.account, "account", os.Getenv("NPR_ACCOUNT"), "Staff account to act as")
	flags.StringVar(&opts.timeZone, "tz", "Asia/Ho_Chi_Minh", "Business time zone for dates")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "Request timeout")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	root.AddCommand(
		newReasonsCommand(opts),
		newHistoryCommand(opts),
		newSubmitCommand(opts),
	)
	return root
}

// Execute runs nprctl and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
