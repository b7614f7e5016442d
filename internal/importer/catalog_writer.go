package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/domain"
)

// CatalogWriter merges imported products into a catalog document. Products
// with a known id are replaced in place; new ones are appended.
type CatalogWriter struct {
	doc     catalog.Document
	index   map[string]int
	added   int
	updated int
}

func NewCatalogWriter(base *catalog.Catalog) *CatalogWriter {
	doc := base.Document()
	idx := make(map[string]int, len(doc.Products))
	for i, p := range doc.Products {
		idx[p.ID] = i
	}
	return &CatalogWriter{doc: doc, index: idx}
}

func (w *CatalogWriter) Upsert(_ context.Context, p domain.Product) error {
	if i, ok := w.index[p.ID]; ok {
		w.doc.Products[i] = p
		w.updated++
		return nil
	}
	w.index[p.ID] = len(w.doc.Products)
	w.doc.Products = append(w.doc.Products, p)
	w.added++
	return nil
}

// Stats reports how many products were added and replaced.
func (w *CatalogWriter) Stats() (added, updated int) {
	return w.added, w.updated
}

// Catalog validates the merged document.
func (w *CatalogWriter) Catalog() (*catalog.Catalog, error) {
	return catalog.New(w.doc)
}

// Save validates the merged document and atomically replaces path with it.
func (w *CatalogWriter) Save(path string) error {
	if _, err := w.Catalog(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(w.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
