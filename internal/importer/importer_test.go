package importer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) error {
	s.items = append(s.items, p)
	return nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,slug,title,type,subCategory,description,dateCreated,featured,relatedItems
gal-006,desert-bloom,Desert Bloom,Photography,nature,Cactus flowers at dawn,2025-02-01,true,gal-004
,,,,,,,,gal-005;gal-001
gal-007,neon-grid,Neon Grid,art,digital,Synthwave study,2025-03-11,false,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 products imported, got %d", count)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected 2 products saved, got %d", len(repo.items))
	}

	first := repo.items[0]
	if first.ID != "gal-006" || first.Slug != "desert-bloom" || first.Type != "photography" || !first.Featured {
		t.Fatalf("unexpected product data: %+v", first)
	}
	if len(first.RelatedItems) != 3 {
		t.Fatalf("expected continuation row to add related items, got %v", first.RelatedItems)
	}
	if repo.items[1].Featured || repo.items[1].RelatedItems != nil {
		t.Fatalf("unexpected second product: %+v", repo.items[1])
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"missing column":       "id,slug,title\ngal-1,s,T",
		"bad featured":         "id,slug,title,type,featured\ngal-1,s,T,art,maybe",
		"missing title":        "id,slug,title,type\ngal-1,s,,art",
		"orphan continuation":  "id,slug,title,type,relatedItems\n,,,,gal-2",
		"continuation w/ slug": "id,slug,title,type,relatedItems\ngal-1,s,T,art,\n,s2,,,gal-2",
	}
	for name, data := range cases {
		imp := NewCSVImporter(strings.NewReader(data), &stubProductRepo{})
		if _, err := imp.Run(context.Background()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCatalogWriter_MergeAndSave(t *testing.T) {
	w := NewCatalogWriter(catalog.Default())
	csvData := `id,slug,title,type,description
gal-001,sunset-mountains,Sunset Over Mountains (2nd ed.),photography,Reprinted
gal-006,desert-bloom,Desert Bloom,photography,Cactus flowers at dawn`

	if _, err := NewCSVImporter(strings.NewReader(csvData), w).Run(context.Background()); err != nil {
		t.Fatalf("import run: %v", err)
	}
	if added, updated := w.Stats(); added != 1 || updated != 1 {
		t.Fatalf("expected 1 added and 1 updated, got %d/%d", added, updated)
	}

	path := filepath.Join(t.TempDir(), "out", "catalog.json")
	if err := w.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(c.Products()) != 6 {
		t.Fatalf("expected 6 products, got %d", len(c.Products()))
	}
	p, err := c.Product("gal-001")
	if err != nil || p.Title != "Sunset Over Mountains (2nd ed.)" {
		t.Fatalf("expected replaced product, got %+v (%v)", p, err)
	}
}

func TestCatalogWriter_SaveRejectsInvalid(t *testing.T) {
	w := NewCatalogWriter(catalog.Default())
	_ = w.Upsert(context.Background(), domain.Product{ID: "gal-009", Slug: "forest-path", Title: "Dup", Type: "art"})
	if err := w.Save(filepath.Join(t.TempDir(), "catalog.json")); err == nil {
		t.Fatal("expected duplicate slug to be rejected")
	}
}
