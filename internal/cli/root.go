// Package cli implements the zonedensity batch command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jengzang/zone-density/internal/app"
	"github.com/jengzang/zone-density/internal/config"
	"github.com/jengzang/zone-density/internal/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type appKey struct{}

// RootOptions holds global CLI flags
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	app *app.App
}

// NewRootCommand creates the root command with its subcommands
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "zonedensity",
		Short:   "Housing density within radius buffers around zone anchors",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.LogFormat, "log-format", "console", "log format (json, console)")

	cmd.AddCommand(
		newImportZonesCmd(),
		newImportRecordsCmd(),
		newRunCmd(),
		newRunsCmd(),
	)
	return cmd
}

// Execute runs the root command with os.Args
func Execute(ctx context.Context) error {
	return Run(ctx, nil, nil)
}

// Run executes the command line args, writing command output to out. The
// application is closed even when a command fails.
func Run(ctx context.Context, args []string, out io.Writer) error {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	if args != nil {
		cmd.SetArgs(args)
	}
	if out != nil {
		cmd.SetOut(out)
	}
	err := cmd.ExecuteContext(ctx)
	if closeErr := opts.close(); err == nil {
		err = closeErr
	}
	return err
}

func (o *RootOptions) close() error {
	if o.app == nil {
		return nil
	}
	a := o.app
	o.app = nil
	return a.Close()
}

func initApp(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = opts.LogFormat
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	opts.app = a
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appKey{}, a))
	return nil
}

func getApp(cmd *cobra.Command) (*app.App, error) {
	if ctx := cmd.Context(); ctx != nil {
		if a, ok := ctx.Value(appKey{}).(*app.App); ok {
			return a, nil
		}
	}
	return nil, errors.New("application not initialized")
}
