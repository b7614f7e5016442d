// Package cli implements cartctl, a command line view of a cart kept in the
// file storage backend.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"

	"sidehustle-shop/internal/cart"
	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/storage"
	"sidehustle-shop/internal/storage/filestore"
)

const (
	defaultFile = "data/storage.json"

	envStorageFile = "SHOP_STORAGE_FILE"
	envCatalogPath = "SHOP_CATALOG_PATH"
	envBrandName   = "SHOP_CHECKOUT_BRAND_NAME"
)

// env is what every command runs against.
type env struct {
	io      *IO
	store   *cart.Store
	catalog *catalog.Catalog
	brand   string
}

type globalFlags struct {
	file    string
	scope   string
	catalog string
	verbose bool
}

// Run is the cartctl entry point. It returns the process exit code.
func Run(out, errOut io.Writer, args []string, environ map[string]string) int {
	o := NewIO(out, errOut)

	fs := flag.NewFlagSet("cartctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)

	var g globalFlags
	fs.StringVarP(&g.file, "file", "f", orDefault(environ[envStorageFile], defaultFile), "Storage file")
	fs.StringVarP(&g.scope, "scope", "s", "", "Session id whose cart to use (default: the local cart)")
	fs.StringVar(&g.catalog, "catalog", environ[envCatalogPath], "Catalog JSONC file (default: built-in catalog)")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Print cart events to stderr")

	if len(args) > 0 {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, fs)
			return 0
		}
		o.ErrPrintln("error:", err)
		printUsage(NewIO(errOut, errOut), fs)
		return 1
	}

	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "help" {
		printUsage(o, fs)
		return 0
	}

	commands := commandSet()
	cmd, ok := commands[rest[0]]
	if !ok {
		o.ErrPrintln("error: unknown command:", rest[0])
		printUsage(NewIO(errOut, errOut), fs)
		return 1
	}

	e, err := openEnv(o, g, environ)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	return cmd.Run(context.Background(), e, rest[1:])
}

func openEnv(o *IO, g globalFlags, environ map[string]string) (*env, error) {
	cat := catalog.Default()
	if g.catalog != "" {
		loaded, err := catalog.Load(g.catalog)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}

	log := logger.New(logger.Options{
		ServiceName: "cartctl",
		Level:       logger.ParseLevel("warn"),
		Format:      "console",
		Output:      o.errOut,
	})

	bus := events.NewBus(log)
	if g.verbose {
		bus.Subscribe(func(ev events.Event) {
			o.ErrPrintln(fmt.Sprintf("event: %s count=%d total=%d", ev.Kind, ev.Payload.CartCount, ev.Payload.CartTotal))
		})
	}

	st := storage.ForSession(filestore.New(g.file), g.scope)
	store := cart.Open(context.Background(), st, bus, cart.WithScope(g.scope), cart.WithLogger(log))
	return &env{io: o, store: store, catalog: cat, brand: environ[envBrandName]}, nil
}

func printUsage(o *IO, fs *flag.FlagSet) {
	o.Println(`cartctl - inspect and edit a print shop cart

Usage: cartctl [global flags] <command> [args]

Global flags:`)
	var buf strings.Builder
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
	o.Printf("%s", buf.String())
	o.Println()
	o.Println("Commands:")

	commands := commandSet()
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o.Println(commands[name].HelpLine())
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
