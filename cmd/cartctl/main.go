// Command cartctl inspects and edits a cart kept in the file storage backend.
package main

import (
	"os"
	"strings"

	"sidehustle-shop/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	os.Exit(cli.Run(os.Stdout, os.Stderr, os.Args, env))
}
