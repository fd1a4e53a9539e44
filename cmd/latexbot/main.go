// Command latexbot renders LaTeX snippets to images through an rtex service.
package main

import (
	"context"
	"os"

	"github.com/jonwraymond/latexbot/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
