package application

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/dfryer1193/gocatalog/catalog/domain"
	"github.com/rs/zerolog/log"
)

// ImportPolicy decides what happens to a batch containing invalid items.
type ImportPolicy int

const (
	// ImportSkipInvalid records invalid items as failures and imports the rest.
	ImportSkipInvalid ImportPolicy = iota
	// ImportAbortOnInvalid rejects the whole batch before anything is written.
	ImportAbortOnInvalid
)

func (p ImportPolicy) String() string {
	switch p {
	case ImportSkipInvalid:
		return "skip-invalid"
	case ImportAbortOnInvalid:
		return "abort-on-invalid"
	default:
		return fmt.Sprintf("ImportPolicy(%d)", int(p))
	}
}

// ImportItem is a product to create from remotely hosted images.
type ImportItem struct {
	Fields    domain.ProductFields
	ImageURLs []string
}

// ImportFailure records an item or a single image URL that could not be
// imported. URL is empty when the whole item failed.
type ImportFailure struct {
	Index int
	Name  string
	URL   string
	Err   error
}

type ImportResult struct {
	Created  []*domain.Product
	Failures []ImportFailure
}

// Import creates one product per item, downloading its images first. An
// image that cannot be downloaded is skipped and recorded; the product is
// still created with the images that did arrive. Every item is attempted,
// so a canceled ctx shows up as per-item failures rather than an error.
func (s *CatalogService) Import(ctx context.Context, items []ImportItem) (*ImportResult, error) {
	if s.policy == ImportAbortOnInvalid {
		for i, item := range items {
			if err := item.Fields.Validate(); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
	}

	result := &ImportResult{
		Created:  make([]*domain.Product, 0, len(items)),
		Failures: make([]ImportFailure, 0),
	}

	for i, item := range items {
		if err := item.Fields.Validate(); err != nil {
			result.Failures = append(result.Failures, ImportFailure{Index: i, Name: item.Fields.Name, Err: err})
			continue
		}

		uploads := make([]domain.Upload, 0, len(item.ImageURLs))
		for _, rawURL := range item.ImageURLs {
			upload, err := s.download(ctx, rawURL)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).
					Int("item", i).
					Str("url", rawURL).
					Msg("Skipping image that could not be downloaded")
				result.Failures = append(result.Failures, ImportFailure{Index: i, Name: item.Fields.Name, URL: rawURL, Err: err})
				continue
			}
			uploads = append(uploads, upload)
		}

		product, err := s.CreateWithImages(ctx, item.Fields, uploads)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).
				Int("item", i).
				Str("name", item.Fields.Name).
				Msg("Failed to import product")
			result.Failures = append(result.Failures, ImportFailure{Index: i, Name: item.Fields.Name, Err: err})
			continue
		}

		result.Created = append(result.Created, product)
	}

	log.Ctx(ctx).Info().
		Int("created", len(result.Created)).
		Int("failures", len(result.Failures)).
		Msg("Import finished")

	return result, nil
}

func (s *CatalogService) download(ctx context.Context, rawURL string) (domain.Upload, error) {
	data, err := s.fetcher.Download(ctx, rawURL)
	if err != nil {
		return domain.Upload{}, err
	}
	if len(data) == 0 {
		return domain.Upload{}, domain.FetchError(rawURL, domain.ErrEmptyFile)
	}

	return domain.Upload{Name: nameHint(rawURL), Data: data}, nil
}

// nameHint returns the last path segment of rawURL, used only for its
// extension.
func nameHint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
