package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. It exclusively owns its Images.
type Product struct {
	ID           int64
	Name         string
	Description  string
	Manufacturer string
	Color        string
	Price        decimal.Decimal
	Quantity     int
	Images       []*Image
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProductFields are the caller-editable fields of a Product.
type ProductFields struct {
	Name         string          `validate:"required,max=100"`
	Description  string          `validate:"max=500"`
	Manufacturer string          `validate:"required,max=100"`
	Color        string          `validate:"required,max=50"`
	Price        decimal.Decimal `validate:"-"`
	Quantity     int             `validate:"gte=0"`
}

var fieldValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the field-level constraints the HTTP layer normally
// enforces. Import items arrive unvalidated and go through here.
func (f ProductFields) Validate() error {
	if err := fieldValidator.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !f.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	return nil
}

// ProductUpdate holds a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Name         *string
	Description  *string
	Manufacturer *string
	Color        *string
	Price        *decimal.Decimal
	Quantity     *int
}

// NewProduct builds an unpersisted product from fields.
func NewProduct(f ProductFields, now time.Time) *Product {
	return &Product{
		Name:         f.Name,
		Description:  f.Description,
		Manufacturer: f.Manufacturer,
		Color:        f.Color,
		Price:        f.Price,
		Quantity:     f.Quantity,
		Images:       []*Image{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply overwrites the fields present in u and bumps UpdatedAt.
func (p *Product) Apply(u ProductUpdate, now time.Time) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Manufacturer != nil {
		p.Manufacturer = *u.Manufacturer
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
	p.UpdatedAt = now
}

// AttachImage appends a new image for a stored file. The display order is
// the image's position in the collection.
func (p *Product) AttachImage(fileName string, now time.Time) (*Image, error) {
	for _, img := range p.Images {
		if img.FileName == fileName {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateImage, fileName)
		}
	}

	order := len(p.Images)
	img := &Image{
		FileName:     fileName,
		DisplayOrder: &order,
		ProductID:    p.ID,
		CreatedAt:    now,
	}
	p.Images = append(p.Images, img)
	return img, nil
}

// ImageDiff describes the rows changed by a ReplaceImages call.
type ImageDiff struct {
	Inserted []*Image
	Deleted  []*Image
}

// ImageEdit returns the desired image set of a product given the images
// currently stored for it.
type ImageEdit func(stored []*Image) []*Image

// WithoutImage keeps every stored image except imageID.
func WithoutImage(imageID int64) ImageEdit {
	return func(stored []*Image) []*Image {
		kept := make([]*Image, 0, len(stored))
		for _, img := range stored {
			if img.ID != imageID {
				kept = append(kept, img)
			}
		}
		return kept
	}
}

type ProductRepository interface {
	// CreateProduct inserts the product and all of its images atomically.
	CreateProduct(ctx context.Context, p *Product) error
	// UpdateProduct writes the product fields and appends the images of p
	// without an id in one transaction. Stored images are kept.
	UpdateProduct(ctx context.Context, p *Product) error
	// ReplaceImages makes the stored image set equal to edit applied to the
	// images stored at write time.
	ReplaceImages(ctx context.Context, productID int64, edit ImageEdit) (*ImageDiff, error)

	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	SearchProductsByName(ctx context.Context, name string) ([]*Product, error)
	ProductExists(ctx context.Context, id int64) (bool, error)
	DeleteProduct(ctx context.Context, id int64) error

	GetImage(ctx context.Context, id int64) (*Image, error)
}
