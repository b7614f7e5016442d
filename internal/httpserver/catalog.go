package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/money"
)

type optionResponse struct {
	domain.PurchaseOption
	PriceFormatted string `json:"priceFormatted"`
}

type productResponse struct {
	domain.Product
	MainImage string   `json:"mainImage"`
	AltImages []string `json:"altImages"`
}

// listProducts supports ?featured=true, ?type= and ?subCategory= filters.
func (h *handler) listProducts(c *gin.Context) {
	products := h.catalog.Products()
	if v := c.Query("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "featured must be a boolean")
			return
		}
		if featured {
			products = h.catalog.Featured()
		}
	}
	typ, sub := c.Query("type"), c.Query("subCategory")

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		if typ != "" && p.Type != typ {
			continue
		}
		if sub != "" && p.SubCategory != sub {
			continue
		}
		out = append(out, h.toProductResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "results": out})
}

func (h *handler) getProduct(c *gin.Context) {
	id := c.Param("id")
	p, err := h.catalog.Product(id)
	if err != nil {
		// Product pages link by slug as well as by id.
		if p, err = h.catalog.ProductBySlug(id); err != nil {
			h.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.toProductResponse(p))
}

func (h *handler) listOptions(c *gin.Context) {
	opts := h.catalog.Options()
	out := make([]optionResponse, 0, len(opts))
	for _, o := range opts {
		out = append(out, optionResponse{PurchaseOption: o, PriceFormatted: money.Format(o.Price)})
	}
	c.JSON(http.StatusOK, gin.H{"frameNote": h.catalog.FrameNote(), "results": out})
}

func (h *handler) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": h.catalog.Categories()})
}

func (h *handler) toProductResponse(p domain.Product) productResponse {
	return productResponse{
		Product:   p,
		MainImage: h.catalog.MainImagePath(p.Slug),
		AltImages: h.catalog.AltImagePaths(p.Slug),
	}
}
