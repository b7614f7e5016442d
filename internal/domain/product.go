package domain

// Product is a gallery work that can be bought in any of the shop's purchase options.
type Product struct {
	ID              string   `json:"id" validate:"required"`
	Slug            string   `json:"slug" validate:"required"`
	Title           string   `json:"title" validate:"required"`
	Type            string   `json:"type" validate:"required"`
	SubCategory     string   `json:"subCategory,omitempty"`
	DateCreated     string   `json:"dateCreated,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description     string   `json:"description,omitempty"`
	LongDescription string   `json:"longDescription,omitempty"`
	Featured        bool     `json:"featured"`
	RelatedItems    []string `json:"relatedItems,omitempty"`
}

// PurchaseOption is a purchasable format (print, framed print, canvas) with its price in cents.
type PurchaseOption struct {
	ID          string       `json:"id" validate:"required"`
	Label       string       `json:"label" validate:"required"`
	Price       int64        `json:"price" validate:"gt=0"`
	SizeNote    string       `json:"sizeNote,omitempty"`
	SubType     string       `json:"subType,omitempty" validate:"omitempty,oneof=aspect-ratio orientation"`
	SubOptions  []SubOption  `json:"subOptions,omitempty" validate:"dive"`
	FrameColors []FrameColor `json:"frameColors,omitempty" validate:"dive"`
}

// SubOption refines a purchase option by aspect ratio or orientation.
type SubOption struct {
	ID       string `json:"id" validate:"required"`
	Label    string `json:"label" validate:"required"`
	SizeNote string `json:"sizeNote,omitempty"`
}

type FrameColor struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label" validate:"required"`
}

type Category struct {
	ID            string        `json:"id" validate:"required"`
	Name          string        `json:"name" validate:"required"`
	SubCategories []SubCategory `json:"subCategories,omitempty" validate:"dive"`
}

type SubCategory struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}
