package rest

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/dfryer1193/gocatalog/api"
	"github.com/dfryer1193/gocatalog/catalog/application"
	"github.com/dfryer1193/gocatalog/catalog/domain"
	"github.com/dfryer1193/gocatalog/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"
)

const (
	productPart = "product"
	imagesPart  = "images"
)

// Catalog is the application surface the HTTP handlers depend on.
type Catalog interface {
	CreateWithImages(ctx context.Context, fields domain.ProductFields, uploads []domain.Upload) (*domain.Product, error)
	UpdateWithImages(ctx context.Context, id int64, update domain.ProductUpdate, uploads []domain.Upload) (*domain.Product, error)
	RemoveImage(ctx context.Context, productID, imageID int64) error
	DeleteProduct(ctx context.Context, id int64) error
	Import(ctx context.Context, items []application.ImportItem) (*application.ImportResult, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, nameFilter string) ([]*domain.Product, error)
	OpenImage(name string) (*os.File, os.FileInfo, error)
}

type ProductHandler struct {
	catalog        Catalog
	descriptions   application.DescriptionRenderer
	imageBaseURL   string
	maxUploadBytes int64
	metrics        *middleware.Metrics
}

// NewProductHandler builds the product handlers. publicBaseURL prefixes
// the image URLs in responses; metrics may be nil.
func NewProductHandler(catalog Catalog, publicBaseURL string, maxUploadBytes int64, metrics *middleware.Metrics) *ProductHandler {
	imageBaseURL := publicBaseURL + "/api/products/images"
	return &ProductHandler{
		catalog:        catalog,
		descriptions:   application.NewDescriptionRenderer(imageBaseURL),
		imageBaseURL:   imageBaseURL,
		maxUploadBytes: maxUploadBytes,
		metrics:        metrics,
	}
}

func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]api.ProductResponse, 0, len(products))
	for _, p := range products {
		response = append(response, h.toResponse(c, p))
	}
	c.JSON(http.StatusOK, response)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(c, product))
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	form, ok := h.multipartForm(c)
	if !ok {
		return
	}

	var req api.ProductRequest
	if !bindProductPart(c, form, &req, true) {
		return
	}

	uploads, err := readUploads(form)
	if err != nil {
		invalidInput(c, err)
		return
	}

	product, err := h.catalog.CreateWithImages(c.Request.Context(), domain.ProductFields{
		Name:         req.Name,
		Description:  req.Description,
		Manufacturer: req.Manufacturer,
		Color:        req.Color,
		Price:        req.Price.Decimal,
		Quantity:     *req.Quantity,
	}, uploads)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(c, product))
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	form, ok := h.multipartForm(c)
	if !ok {
		return
	}

	var patch api.ProductPatch
	if !bindProductPart(c, form, &patch, false) {
		return
	}

	uploads, err := readUploads(form)
	if err != nil {
		invalidInput(c, err)
		return
	}

	update := domain.ProductUpdate{
		Name:         patch.Name,
		Description:  patch.Description,
		Manufacturer: patch.Manufacturer,
		Color:        patch.Color,
		Quantity:     patch.Quantity,
	}
	if patch.Price.Valid {
		update.Price = &patch.Price.Decimal
	}

	product, err := h.catalog.UpdateWithImages(c.Request.Context(), id, update, uploads)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(c, product))
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) RemoveImage(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(c, "imageId")
	if !ok {
		return
	}

	if err := h.catalog.RemoveImage(c.Request.Context(), productID, imageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) ImportProducts(c *gin.Context) {
	var req []api.ImportItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	items := make([]application.ImportItem, len(req))
	for i, r := range req {
		fields := domain.ProductFields{
			Name:         r.Name,
			Description:  r.Description,
			Manufacturer: r.Manufacturer,
			Color:        r.Color,
			Price:        r.Price.Decimal,
		}
		// a missing quantity imports as zero stock
		if r.Quantity != nil {
			fields.Quantity = *r.Quantity
		}
		items[i] = application.ImportItem{Fields: fields, ImageURLs: r.ImageURLs}
	}

	result, err := h.catalog.Import(c.Request.Context(), items)
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordImport(result)

	response := api.ImportResponse{
		Created:  make([]api.ProductResponse, 0, len(result.Created)),
		Failures: make([]api.ImportFailureResponse, 0, len(result.Failures)),
	}
	for _, p := range result.Created {
		response.Created = append(response.Created, h.toResponse(c, p))
	}
	for _, f := range result.Failures {
		response.Failures = append(response.Failures, api.ImportFailureResponse{
			Index: f.Index,
			Name:  f.Name,
			URL:   f.URL,
			Error: f.Err.Error(),
		})
	}

	c.JSON(http.StatusCreated, response)
}

func (h *ProductHandler) recordImport(result *application.ImportResult) {
	if h.metrics == nil {
		return
	}

	var failedURLs, failedItems int
	for _, f := range result.Failures {
		if f.URL != "" {
			failedURLs++
		} else {
			failedItems++
		}
	}

	var stored int
	for _, p := range result.Created {
		stored += len(p.Images)
	}

	h.metrics.ImportedProducts.WithLabelValues("created").Add(float64(len(result.Created)))
	h.metrics.ImportedProducts.WithLabelValues("failed").Add(float64(failedItems))
	h.metrics.ImportedImages.WithLabelValues("stored").Add(float64(stored))
	h.metrics.ImportedImages.WithLabelValues("failed").Add(float64(failedURLs))
}

// multipartForm parses the request body as multipart/form-data, capping
// its size at maxUploadBytes.
func (h *ProductHandler) multipartForm(c *gin.Context) (*multipart.Form, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		invalidInput(c, fmt.Errorf("expected multipart form: %w", err))
		return nil, false
	}
	return form, true
}

// bindProductPart decodes and validates the JSON product part into obj.
// The part may arrive as a plain form value or as a file part.
func bindProductPart(c *gin.Context, form *multipart.Form, obj any, required bool) bool {
	body, err := productPartBody(form)
	if err != nil {
		invalidInput(c, err)
		return false
	}
	if body == nil {
		if required {
			invalidInput(c, fmt.Errorf("missing %q part", productPart))
			return false
		}
		body = []byte("{}")
	}

	if err := binding.JSON.BindBody(body, obj); err != nil {
		invalidInput(c, err)
		return false
	}
	return true
}

func productPartBody(form *multipart.Form) ([]byte, error) {
	if values := form.Value[productPart]; len(values) > 0 {
		return []byte(values[0]), nil
	}

	if files := form.File[productPart]; len(files) > 0 {
		return readFileHeader(files[0])
	}
	return nil, nil
}

// readUploads reads every non-empty images part.
func readUploads(form *multipart.Form) ([]domain.Upload, error) {
	files := form.File[imagesPart]
	uploads := make([]domain.Upload, 0, len(files))

	for _, fh := range files {
		if fh.Size == 0 {
			continue
		}

		data, err := readFileHeader(fh)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}

		uploads = append(uploads, domain.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", fh.Filename, err)
	}
	return data, nil
}

func pathID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		invalidInput(c, fmt.Errorf("invalid %s %q", param, c.Param(param)))
		return 0, false
	}
	return id, true
}

func (h *ProductHandler) toResponse(c *gin.Context, p *domain.Product) api.ProductResponse {
	resp := api.ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Manufacturer: p.Manufacturer,
		Color:        p.Color,
		Price:        p.Price,
		Quantity:     p.Quantity,
		Images:       make([]api.ImageResponse, 0, len(p.Images)),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}

	rendered, err := h.descriptions.Render(p.Description)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Int64("product_id", p.ID).Msg("Failed to render description")
	} else {
		resp.DescriptionHTML = rendered.HTML
		resp.Summary = rendered.Summary
	}

	for _, img := range p.Images {
		resp.Images = append(resp.Images, api.ImageResponse{
			ID:           img.ID,
			FileName:     img.FileName,
			URL:          h.imageBaseURL + "/" + img.FileName,
			DisplayOrder: img.DisplayOrder,
			CreatedAt:    img.CreatedAt,
		})
	}

	return resp
}
