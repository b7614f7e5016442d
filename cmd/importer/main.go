package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/importer"
	"sidehustle-shop/internal/logger"
)

func main() {
	var (
		filePath string
		basePath string
		outPath  string
	)
	flag.StringVarP(&filePath, "file", "f", "", "Path to the gallery CSV export")
	flag.StringVar(&basePath, "base", "", "Catalog JSONC to merge into (default: built-in catalog)")
	flag.StringVarP(&outPath, "out", "o", "", "Where to write the merged catalog JSON")
	flag.Parse()

	if filePath == "" || outPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "importer", Format: "console", Output: os.Stderr})
	ctx := logg.WithFields(context.Background(), map[string]any{"file": filePath, "out": outPath})

	base := catalog.Default()
	if basePath != "" {
		var err error
		if base, err = catalog.Load(basePath); err != nil {
			logg.Error(ctx, "load base catalog", err)
			os.Exit(1)
		}
	}

	f, err := os.Open(filePath)
	if err != nil {
		logg.Error(ctx, "open file", err)
		os.Exit(1)
	}
	defer f.Close()

	writer := importer.NewCatalogWriter(base)
	imp := importer.NewCSVImporter(f, writer)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logg.Error(ctx, "import failed", err)
		os.Exit(1)
	}
	if err := writer.Save(outPath); err != nil {
		logg.Error(ctx, "save catalog", err)
		os.Exit(1)
	}

	added, updated := writer.Stats()
	fmt.Printf("Imported %d products (%d new, %d updated) into %s in %s\n", count, added, updated, outPath, time.Since(start).Truncate(time.Millisecond))
}
