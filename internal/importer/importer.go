package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sidehustle-shop/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) error
}

// CSVImporter reads gallery exports and hands each work to a ProductWriter.
//
// Expected columns: id, slug, title, type, subCategory, description,
// longDescription, dateCreated, featured, relatedItems. A row with an empty id
// continues the previous work and may only add related items.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
}

func NewCSVImporter(r io.Reader, w ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:   csvr,
		products: w,
	}
}

type csvRow struct {
	line    int
	product domain.Product
}

// Run parses CSV rows and upserts one product per id.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"id", "slug", "title", "type"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row, err := parseRow(record, index, line)
		if err != nil {
			return imported, err
		}
		if row == nil {
			continue
		}

		if row.product.ID != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows only extend the related items of the current work.
		if current == nil {
			return imported, fmt.Errorf("line %d: continuation row before any product", line)
		}
		if row.product.Slug != "" || row.product.Title != "" {
			return imported, fmt.Errorf("line %d: continuation row may only list related items", line)
		}
		current.product.RelatedItems = append(current.product.RelatedItems, row.product.RelatedItems...)
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	p := row.product
	if p.Slug == "" || p.Title == "" || p.Type == "" {
		return fmt.Errorf("line %d: invalid product row (missing required fields) for id %q", row.line, p.ID)
	}
	if err := i.products.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", p.ID, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int, line int) (*csvRow, error) {
	p := domain.Product{
		ID:              pick(record, index, "id"),
		Slug:            pick(record, index, "slug"),
		Title:           pick(record, index, "title"),
		Type:            strings.ToLower(pick(record, index, "type")),
		SubCategory:     pick(record, index, "subCategory"),
		Description:     pick(record, index, "description"),
		LongDescription: pick(record, index, "longDescription"),
		DateCreated:     pick(record, index, "dateCreated"),
		RelatedItems:    splitList(pick(record, index, "relatedItems")),
	}
	if raw := pick(record, index, "featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: featured must be a boolean, got %q", line, raw)
		}
		p.Featured = featured
	}

	if p.ID == "" && p.Slug == "" && p.Title == "" && len(p.RelatedItems) == 0 {
		return nil, nil
	}
	return &csvRow{line: line, product: p}, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
