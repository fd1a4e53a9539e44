package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/latexbot/latex"
)

// maxStdinQuery bounds a query read from stdin.
const maxStdinQuery = 1 << 20

type renderOptions struct {
	scope string
	out   string
}

func newRenderCommand(e *env) *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render [flags] <query|->",
		Short: "Render a LaTeX snippet",
		Long: `Render a LaTeX snippet, using the image cache when possible.

The query may be wrapped in a code fence. Pass "-" to read it from stdin.
Without --out the cached image path is printed. With --out - the image
bytes are written to stdout. A failure notice exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), e, cmd, query, opts)
		},
	}
	cmd.Flags().StringVar(&opts.scope, "scope", "", "serialization scope (default \"default\")")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the image to this file, or - for stdout")
	return cmd
}

func readQuery(stdin io.Reader, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, maxStdinQuery+1))
	if err != nil {
		return "", fmt.Errorf("reading query: %w", err)
	}
	if len(data) > maxStdinQuery {
		return "", fmt.Errorf("query exceeds %d bytes", maxStdinQuery)
	}
	return string(data), nil
}

func runRender(ctx context.Context, e *env, cmd *cobra.Command, query string, opts renderOptions) (err error) {
	a, err := e.build(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Shutdown(context.WithoutCancel(ctx))) }()

	resp, err := a.Handler.Handle(ctx, latex.Request{Scope: opts.scope, Query: query})
	if err != nil {
		return err
	}

	if resp.Kind == latex.KindFailure {
		fmt.Fprintln(cmd.ErrOrStderr(), resp.Title)
		fmt.Fprintln(cmd.ErrOrStderr(), resp.Description)
		return errRenderFailed
	}

	switch opts.out {
	case "":
		fmt.Fprintln(cmd.OutOrStdout(), resp.Path)
		return nil
	case "-":
		return copyImage(ctx, a.Handler, resp, cmd.OutOrStdout())
	default:
		return writeImageFile(ctx, a.Handler, resp, opts.out)
	}
}

func copyImage(ctx context.Context, h *latex.Handler, resp latex.Response, w io.Writer) error {
	rc, err := h.Open(ctx, resp)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

// writeImageFile writes through a temporary file in the target directory so
// a failed copy never leaves a truncated image at path.
func writeImageFile(ctx context.Context, h *latex.Handler, resp latex.Response, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"-*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := copyImage(ctx, h, resp, tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
