// Package cli implements the latexbot command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonwraymond/latexbot/app"
	"github.com/jonwraymond/latexbot/config"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitRenderFailed = 1
	ExitError        = 2
)

// errRenderFailed marks a failure notice so Run can map it to its exit code.
var errRenderFailed = errors.New("input could not be rendered")

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"cache-dir":       "cache.dir",
	"render-endpoint": "render.endpoint",
	"template":        "template.path",
}

// env carries the loaded configuration to subcommands.
type env struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds the command tree. Each call gets its own viper
// instance.
func NewRootCommand() *cobra.Command {
	e := &env{v: viper.New()}

	root := &cobra.Command{
		Use:           "latexbot",
		Short:         "Render LaTeX snippets to images",
		Long:          "latexbot renders LaTeX snippets through an rtex service, caching images by content hash.",
		Version:       app.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&e.cfgFile, "config", "c", "", "config file (default: latexbot.{toml,yaml,json} in the user config dir or .)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("cache-dir", "", "image cache directory")
	pf.String("render-endpoint", "", "rtex API endpoint")
	pf.String("template", "", "LaTeX document template file")
	for flag, key := range flagKeys {
		_ = e.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		newServeCommand(e),
		newRenderCommand(e),
		newCacheCommand(e),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

func (e *env) load(ctx context.Context) error {
	if e.cfgFile != "" {
		e.v.SetConfigFile(e.cfgFile)
	}
	cfg, err := config.Load(ctx, e.v)
	if err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

func (e *env) build(ctx context.Context, w io.Writer) (*app.App, error) {
	return app.Build(ctx, e.cfg, app.WithLogWriter(w))
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errRenderFailed):
		return ExitRenderFailed
	default:
		fmt.Fprintln(stderr, "latexbot:", err)
		return ExitError
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the latexbot version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "latexbot version %s\n", app.Version)
		},
	}
}
