// Package catalog serves the shop's products and purchase options and turns a
// shopper's selection into the denormalized line the cart stores.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tailscale/hujson"

	"sidehustle-shop/internal/domain"
)

//go:embed catalog.jsonc
var defaultCatalog []byte

const defaultImageBase = "assets/images/gallery"

var altImages = []string{"alt-1.jpg", "alt-2.jpg", "alt-3.jpg", "alt-4.jpg"}

// Document is the on-disk catalog format.
type Document struct {
	ImageBasePath   string                  `json:"imageBasePath,omitempty"`
	FrameNote       string                  `json:"frameNote,omitempty"`
	Categories      []domain.Category       `json:"categories,omitempty" validate:"dive"`
	PurchaseOptions []domain.PurchaseOption `json:"purchaseOptions" validate:"required,min=1,dive"`
	Products        []domain.Product        `json:"products" validate:"dive"`
}

// Selection is what a shopper picked on a product page.
type Selection struct {
	ProductID  string `json:"productId"`
	OptionID   string `json:"optionId,omitempty"`
	SubOption  string `json:"subOption,omitempty"`
	FrameColor string `json:"frameColor,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

type Catalog struct {
	doc    Document
	byID   map[string]int
	bySlug map[string]int
	opts   map[string]int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the catalog built into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. JSON with comments and trailing commas is accepted.
func Load(filePath string) (*Catalog, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog syntax: %w", err)
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc)
}

// New validates doc and indexes it.
func New(doc Document) (*Catalog, error) {
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	if doc.ImageBasePath == "" {
		doc.ImageBasePath = defaultImageBase
	}

	c := &Catalog{
		doc:    doc,
		byID:   make(map[string]int, len(doc.Products)),
		bySlug: make(map[string]int, len(doc.Products)),
		opts:   make(map[string]int, len(doc.PurchaseOptions)),
	}
	for i, o := range doc.PurchaseOptions {
		if _, dup := c.opts[o.ID]; dup {
			return nil, fmt.Errorf("duplicate purchase option %q", o.ID)
		}
		c.opts[o.ID] = i
	}
	categories := make(map[string]struct{}, len(doc.Categories))
	for _, cat := range doc.Categories {
		categories[cat.ID] = struct{}{}
	}
	for i, p := range doc.Products {
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("duplicate product slug %q", p.Slug)
		}
		if len(categories) > 0 {
			if _, ok := categories[p.Type]; !ok {
				return nil, fmt.Errorf("product %q: unknown type %q", p.ID, p.Type)
			}
		}
		c.byID[p.ID] = i
		c.bySlug[p.Slug] = i
	}
	return c, nil
}

// Document returns a copy of the underlying document.
func (c *Catalog) Document() Document {
	doc := c.doc
	doc.Products = c.Products()
	doc.PurchaseOptions = c.Options()
	doc.Categories = append([]domain.Category(nil), c.doc.Categories...)
	return doc
}

func (c *Catalog) Products() []domain.Product {
	return append([]domain.Product(nil), c.doc.Products...)
}

// Featured returns the products flagged for the home page.
func (c *Catalog) Featured() []domain.Product {
	var out []domain.Product
	for _, p := range c.doc.Products {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Product(id string) (domain.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	return c.doc.Products[i], nil
}

func (c *Catalog) ProductBySlug(slug string) (domain.Product, error) {
	i, ok := c.bySlug[slug]
	if !ok {
		return domain.Product{}, fmt.Errorf("product slug %q: %w", slug, domain.ErrNotFound)
	}
	return c.doc.Products[i], nil
}

func (c *Catalog) Options() []domain.PurchaseOption {
	return append([]domain.PurchaseOption(nil), c.doc.PurchaseOptions...)
}

func (c *Catalog) Option(id string) (domain.PurchaseOption, error) {
	i, ok := c.opts[id]
	if !ok {
		return domain.PurchaseOption{}, fmt.Errorf("purchase option %q: %w", id, domain.ErrInvalidSelection)
	}
	return c.doc.PurchaseOptions[i], nil
}

func (c *Catalog) FrameNote() string {
	return c.doc.FrameNote
}

func (c *Catalog) Categories() []domain.Category {
	return append([]domain.Category(nil), c.doc.Categories...)
}

// SubCategories lists the sub-categories of categoryID, or nil for an unknown id.
func (c *Catalog) SubCategories(categoryID string) []domain.SubCategory {
	for _, cat := range c.doc.Categories {
		if cat.ID == categoryID {
			return append([]domain.SubCategory(nil), cat.SubCategories...)
		}
	}
	return nil
}

func (c *Catalog) MainImagePath(slug string) string {
	return path.Join(c.doc.ImageBasePath, slug, "main.jpg")
}

func (c *Catalog) AltImagePaths(slug string) []string {
	out := make([]string, 0, len(altImages))
	for _, name := range altImages {
		out = append(out, path.Join(c.doc.ImageBasePath, slug, name))
	}
	return out
}

// DefaultSelection picks the first purchase option with its first sub-option
// and frame color, the quick-add of the gallery grid.
func (c *Catalog) DefaultSelection(productID string) (Selection, error) {
	if _, err := c.Product(productID); err != nil {
		return Selection{}, err
	}
	opt := c.doc.PurchaseOptions[0]
	sel := Selection{ProductID: productID, OptionID: opt.ID, Quantity: 1}
	if len(opt.SubOptions) > 0 {
		sel.SubOption = opt.SubOptions[0].ID
	}
	if len(opt.FrameColors) > 0 {
		sel.FrameColor = opt.FrameColors[0].ID
	}
	return sel, nil
}

// Resolve checks sel against the catalog and copies the labels, size note and
// price the cart keeps for the line. An empty option, sub-option or frame color
// falls back to the first one offered.
func (c *Catalog) Resolve(sel Selection) (domain.AddSpec, error) {
	product, err := c.Product(strings.TrimSpace(sel.ProductID))
	if err != nil {
		return domain.AddSpec{}, err
	}

	opt := c.doc.PurchaseOptions[0]
	if id := strings.TrimSpace(sel.OptionID); id != "" {
		if opt, err = c.Option(id); err != nil {
			return domain.AddSpec{}, err
		}
	}

	spec := domain.AddSpec{
		ProductID:   product.ID,
		Slug:        product.Slug,
		Title:       product.Title,
		Type:        product.Type,
		OptionID:    opt.ID,
		OptionLabel: opt.Label,
		SizeNote:    opt.SizeNote,
		Price:       opt.Price,
		Quantity:    sel.Quantity,
	}

	sub, err := pickSubOption(opt, strings.TrimSpace(sel.SubOption))
	if err != nil {
		return domain.AddSpec{}, err
	}
	if sub != nil {
		spec.SubOption = sub.ID
		spec.SubOptionLabel = sub.Label
		if sub.SizeNote != "" {
			spec.SizeNote = sub.SizeNote
		}
	}

	frame, err := pickFrameColor(opt, strings.TrimSpace(sel.FrameColor))
	if err != nil {
		return domain.AddSpec{}, err
	}
	if frame != nil {
		spec.FrameColor = frame.ID
		spec.FrameColorLabel = frame.Label
	}
	return spec, nil
}

func pickSubOption(opt domain.PurchaseOption, id string) (*domain.SubOption, error) {
	if len(opt.SubOptions) == 0 {
		if id != "" {
			return nil, fmt.Errorf("%s has no sub-options, got %q: %w", opt.ID, id, domain.ErrInvalidSelection)
		}
		return nil, nil
	}
	if id == "" {
		return &opt.SubOptions[0], nil
	}
	for i := range opt.SubOptions {
		if opt.SubOptions[i].ID == id {
			return &opt.SubOptions[i], nil
		}
	}
	return nil, fmt.Errorf("%s: unknown sub-option %q: %w", opt.ID, id, domain.ErrInvalidSelection)
}

func pickFrameColor(opt domain.PurchaseOption, id string) (*domain.FrameColor, error) {
	if len(opt.FrameColors) == 0 {
		if id != "" {
			return nil, fmt.Errorf("%s is not framed, got frame color %q: %w", opt.ID, id, domain.ErrInvalidSelection)
		}
		return nil, nil
	}
	if id == "" {
		return &opt.FrameColors[0], nil
	}
	for i := range opt.FrameColors {
		if opt.FrameColors[i].ID == id {
			return &opt.FrameColors[i], nil
		}
	}
	return nil, fmt.Errorf("%s: unknown frame color %q: %w", opt.ID, id, domain.ErrInvalidSelection)
}
