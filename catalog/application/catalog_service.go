package application

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/dfryer1193/gocatalog/catalog/domain"
	"github.com/rs/zerolog/log"
)

// CatalogService coordinates the relational catalog with the media store.
// Files written during a failed operation are removed before it returns.
type CatalogService struct {
	repo    domain.ProductRepository
	media   domain.MediaStore
	fetcher domain.RemoteFetcher
	policy  ImportPolicy
	now     func() time.Time
}

type Option func(*CatalogService)

// WithImportPolicy sets how Import treats items that fail validation.
func WithImportPolicy(policy ImportPolicy) Option {
	return func(s *CatalogService) {
		s.policy = policy
	}
}

// WithClock replaces the time source used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CatalogService) {
		s.now = now
	}
}

func NewCatalogService(repo domain.ProductRepository, media domain.MediaStore, fetcher domain.RemoteFetcher, opts ...Option) *CatalogService {
	s := &CatalogService{
		repo:    repo,
		media:   media,
		fetcher: fetcher,
		policy:  ImportSkipInvalid,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWithImages stores every upload, then persists the product with one
// image per stored file.
func (s *CatalogService) CreateWithImages(ctx context.Context, fields domain.ProductFields, uploads []domain.Upload) (*domain.Product, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	product := domain.NewProduct(fields, now)

	stored, err := s.storeUploads(ctx, product, uploads, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		s.cleanup(ctx, stored)
		return nil, domain.PersistenceError("create product", err)
	}

	log.Ctx(ctx).Info().
		Int64("product_id", product.ID).
		Int("images", len(product.Images)).
		Msg("Created product")

	return product, nil
}

// UpdateWithImages applies the non-nil fields of update and appends an image
// for every upload. Existing images are kept.
func (s *CatalogService) UpdateWithImages(ctx context.Context, id int64, update domain.ProductUpdate, uploads []domain.Upload) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, domain.PersistenceError("get product", err)
	}

	now := s.now()
	product.Apply(update, now)
	if err := fieldsOf(product).Validate(); err != nil {
		return nil, err
	}

	stored, err := s.storeUploads(ctx, product, uploads, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		s.cleanup(ctx, stored)
		return nil, domain.PersistenceError("update product", err)
	}

	log.Ctx(ctx).Info().
		Int64("product_id", product.ID).
		Int("added_images", len(stored)).
		Msg("Updated product")

	return product, nil
}

// RemoveImage deletes the image file and then its row. A file that is
// already gone does not stop the row from being removed.
func (s *CatalogService) RemoveImage(ctx context.Context, productID, imageID int64) error {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.PersistenceError("get product", err)
	}

	img, err := s.repo.GetImage(ctx, imageID)
	if err != nil {
		return domain.PersistenceError("get image", err)
	}

	if img.ProductID != product.ID {
		return domain.ErrOwnershipMismatch
	}

	existed, err := s.media.Delete(img.FileName)
	if err != nil {
		return storageError("delete "+img.FileName, err)
	}
	if !existed {
		log.Ctx(ctx).Warn().
			Int64("image_id", imageID).
			Str("file", img.FileName).
			Msg("Image file was already missing")
	}

	diff, err := s.repo.ReplaceImages(ctx, product.ID, domain.WithoutImage(imageID))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Int64("image_id", imageID).
			Str("file", img.FileName).
			Msg("Image file deleted but its row could not be removed")
		return domain.PersistenceError("remove image", err)
	}
	// a concurrent remove got to the row first
	if len(diff.Deleted) == 0 {
		return domain.ImageNotFound(imageID)
	}

	return nil
}

// DeleteProduct removes every file of the product, then the product itself.
// File failures are logged and do not prevent the delete.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.PersistenceError("get product", err)
	}

	for _, img := range product.Images {
		if _, err := s.media.Delete(img.FileName); err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Int64("product_id", id).
				Str("file", img.FileName).
				Msg("Failed to delete image file")
		}
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return domain.PersistenceError("delete product", err)
	}

	log.Ctx(ctx).Info().Int64("product_id", id).Msg("Deleted product")
	return nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, domain.PersistenceError("get product", err)
	}
	return product, nil
}

// ListProducts returns all products, or those whose name contains
// nameFilter ignoring case.
func (s *CatalogService) ListProducts(ctx context.Context, nameFilter string) ([]*domain.Product, error) {
	var products []*domain.Product
	var err error

	if filter := strings.TrimSpace(nameFilter); filter != "" {
		products, err = s.repo.SearchProductsByName(ctx, filter)
	} else {
		products, err = s.repo.ListProducts(ctx)
	}
	if err != nil {
		return nil, domain.PersistenceError("list products", err)
	}

	return products, nil
}

// OpenImage opens a stored file for streaming. The caller closes it.
func (s *CatalogService) OpenImage(name string) (*os.File, os.FileInfo, error) {
	return s.media.Open(name)
}

// storeUploads writes each upload to the media store and attaches it to
// product. On failure every file stored by this call is removed again.
func (s *CatalogService) storeUploads(ctx context.Context, product *domain.Product, uploads []domain.Upload, now time.Time) ([]string, error) {
	stored := make([]string, 0, len(uploads))

	for _, upload := range uploads {
		name, err := s.media.Store(upload.Data, upload.Name)
		if err != nil {
			s.cleanup(ctx, stored)
			return nil, storageError("store "+upload.Name, err)
		}
		stored = append(stored, name)

		if _, err := product.AttachImage(name, now); err != nil {
			s.cleanup(ctx, stored)
			return nil, err
		}
	}

	return stored, nil
}

// cleanup deletes files written by an operation that did not complete.
func (s *CatalogService) cleanup(ctx context.Context, names []string) {
	for _, name := range names {
		if _, err := s.media.Delete(name); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("file", name).Msg("Failed to clean up stored file")
		}
	}
}

// storageError keeps media store errors that already carry a sentinel and
// tags anything else as a storage failure.
func storageError(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrEmptyFile) || errors.Is(err, domain.ErrInvalidName) {
		return err
	}
	return domain.StorageError(op, err)
}

func fieldsOf(p *domain.Product) domain.ProductFields {
	return domain.ProductFields{
		Name:         p.Name,
		Description:  p.Description,
		Manufacturer: p.Manufacturer,
		Color:        p.Color,
		Price:        p.Price,
		Quantity:     p.Quantity,
	}
}
