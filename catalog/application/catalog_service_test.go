package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dfryer1193/gocatalog/catalog/domain"
	"github.com/dfryer1193/gocatalog/catalog/media"
	"github.com/dfryer1193/gocatalog/catalog/persistence"
	"github.com/dfryer1193/gocatalog/shared/db/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var errDiskFull = errors.New("disk full")

// faultyMediaStore wraps a real store and fails selected calls.
type faultyMediaStore struct {
	*media.FileStore

	mu          sync.Mutex
	storeCalls  int
	failStoreAt int
	failDelete  bool
}

func (s *faultyMediaStore) Store(data []byte, nameHint string) (string, error) {
	s.mu.Lock()
	s.storeCalls++
	fail := s.failStoreAt != 0 && s.storeCalls == s.failStoreAt
	s.mu.Unlock()

	if fail {
		return "", domain.StorageError("write", errDiskFull)
	}
	return s.FileStore.Store(data, nameHint)
}

func (s *faultyMediaStore) Delete(name string) (bool, error) {
	if s.failDelete {
		return false, domain.StorageError("delete "+name, errDiskFull)
	}
	return s.FileStore.Delete(name)
}

// faultyRepository wraps a real repository and fails selected writes.
// afterGet and afterGetImage run once, right after the next matching read.
type faultyRepository struct {
	domain.ProductRepository

	failCreateFor string
	failUpdate    bool
	failReplace   bool
	failDelete    bool
	afterGet      func()
	afterGetImage func()
}

func (r *faultyRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := r.ProductRepository.GetProduct(ctx, id)
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook()
	}
	return p, err
}

func (r *faultyRepository) GetImage(ctx context.Context, id int64) (*domain.Image, error) {
	img, err := r.ProductRepository.GetImage(ctx, id)
	if hook := r.afterGetImage; hook != nil {
		r.afterGetImage = nil
		hook()
	}
	return img, err
}

func (r *faultyRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if r.failCreateFor != "" && p.Name == r.failCreateFor {
		return errors.New("database is locked")
	}
	return r.ProductRepository.CreateProduct(ctx, p)
}

func (r *faultyRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if r.failUpdate {
		return errors.New("database is locked")
	}
	return r.ProductRepository.UpdateProduct(ctx, p)
}

func (r *faultyRepository) ReplaceImages(ctx context.Context, productID int64, edit domain.ImageEdit) (*domain.ImageDiff, error) {
	if r.failReplace {
		return nil, errors.New("database is locked")
	}
	return r.ProductRepository.ReplaceImages(ctx, productID, edit)
}

func (r *faultyRepository) DeleteProduct(ctx context.Context, id int64) error {
	if r.failDelete {
		return errors.New("database is locked")
	}
	return r.ProductRepository.DeleteProduct(ctx, id)
}

// stubFetcher serves canned payloads; unknown URLs fail.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	calls     []string
}

func (f *stubFetcher) Download(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	data, ok := f.responses[url]
	if !ok {
		return nil, domain.FetchError(url, errors.New("unexpected status 404"))
	}
	return data, nil
}

type CatalogServiceSuite struct {
	suite.Suite

	ctx     context.Context
	store   *faultyMediaStore
	repo    *faultyRepository
	fetcher *stubFetcher
	clock   time.Time
	service *CatalogService
}

func (s *CatalogServiceSuite) SetupTest() {
	dir := s.T().TempDir()

	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: filepath.Join(dir, "catalog.db")})
	s.Require().NoError(database.Connect())
	s.T().Cleanup(func() { database.Close() })

	fileStore, err := media.NewFileStore(filepath.Join(dir, "uploads"))
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.store = &faultyMediaStore{FileStore: fileStore}
	s.repo = &faultyRepository{ProductRepository: persistence.NewProductRepository(database.DB())}
	s.fetcher = &stubFetcher{responses: map[string][]byte{}}
	s.clock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.service = s.newService()
}

func (s *CatalogServiceSuite) newService(opts ...Option) *CatalogService {
	opts = append([]Option{WithClock(s.tick)}, opts...)
	return NewCatalogService(s.repo, s.store, s.fetcher, opts...)
}

func (s *CatalogServiceSuite) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

// storedFiles lists the files currently in the media root
func (s *CatalogServiceSuite) storedFiles() []string {
	entries, err := os.ReadDir(s.store.Root())
	s.Require().NoError(err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func validFields(name string) domain.ProductFields {
	return domain.ProductFields{
		Name:         name,
		Description:  "Sturdy and **reliable**",
		Manufacturer: "Acme",
		Color:        "black",
		Price:        decimal.RequireFromString("49.50"),
		Quantity:     10,
	}
}

func uploads(names ...string) []domain.Upload {
	out := make([]domain.Upload, len(names))
	for i, n := range names {
		out[i] = domain.Upload{Name: n, Data: []byte("bytes of " + n)}
	}
	return out
}

func (s *CatalogServiceSuite) createProduct(name string, files ...string) *domain.Product {
	p, err := s.service.CreateWithImages(s.ctx, validFields(name), uploads(files...))
	s.Require().NoError(err)
	return p
}

func (s *CatalogServiceSuite) TestCreateWithImages() {
	p, err := s.service.CreateWithImages(s.ctx, validFields("Drill"), uploads("front.png", "back.JPG"))
	s.Require().NoError(err)

	s.NotZero(p.ID)
	s.Require().Len(p.Images, 2)
	s.Equal(".png", filepath.Ext(p.Images[0].FileName))
	s.Equal(".jpg", filepath.Ext(p.Images[1].FileName))

	for i, img := range p.Images {
		s.NotZero(img.ID)
		s.Equal(p.ID, img.ProductID)
		s.Require().NotNil(img.DisplayOrder)
		s.Equal(i, *img.DisplayOrder)

		data, err := s.store.Load(img.FileName)
		s.Require().NoError(err)
		s.NotEmpty(data)
	}

	got, err := s.service.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(got.Images, 2)
	s.ElementsMatch([]string{p.Images[0].FileName, p.Images[1].FileName}, s.storedFiles())
}

func (s *CatalogServiceSuite) TestCreateWithImages_NoUploads() {
	p := s.createProduct("Plain")

	s.Empty(p.Images)
	s.Empty(s.storedFiles())
}

func (s *CatalogServiceSuite) TestCreateWithImages_EmptyUploadCleansUp() {
	files := uploads("a.png", "b.png", "c.png")
	files[1].Data = nil

	_, err := s.service.CreateWithImages(s.ctx, validFields("Drill"), files)
	s.ErrorIs(err, domain.ErrEmptyFile)

	s.Empty(s.storedFiles())
	products, err := s.service.ListProducts(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(products)
}

func (s *CatalogServiceSuite) TestCreateWithImages_StoreFailureCleansUp() {
	s.store.failStoreAt = 3

	_, err := s.service.CreateWithImages(s.ctx, validFields("Drill"), uploads("a.png", "b.png", "c.png"))
	s.ErrorIs(err, domain.ErrStorage)
	s.ErrorIs(err, errDiskFull)

	s.Empty(s.storedFiles())
}

func (s *CatalogServiceSuite) TestCreateWithImages_PersistenceFailureCleansUp() {
	s.repo.failCreateFor = "Drill"

	_, err := s.service.CreateWithImages(s.ctx, validFields("Drill"), uploads("a.png", "b.png"))
	s.ErrorIs(err, domain.ErrPersistence)

	s.Empty(s.storedFiles())
}

func (s *CatalogServiceSuite) TestCreateWithImages_InvalidFields() {
	tests := []struct {
		name   string
		mutate func(f *domain.ProductFields)
	}{
		{"missing name", func(f *domain.ProductFields) { f.Name = "" }},
		{"name too long", func(f *domain.ProductFields) { f.Name = string(make([]byte, 101)) }},
		{"missing manufacturer", func(f *domain.ProductFields) { f.Manufacturer = "" }},
		{"missing color", func(f *domain.ProductFields) { f.Color = "" }},
		{"zero price", func(f *domain.ProductFields) { f.Price = decimal.Zero }},
		{"negative price", func(f *domain.ProductFields) { f.Price = decimal.NewFromInt(-1) }},
		{"negative quantity", func(f *domain.ProductFields) { f.Quantity = -1 }},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			fields := validFields("Drill")
			tt.mutate(&fields)

			_, err := s.service.CreateWithImages(s.ctx, fields, uploads("a.png"))
			s.ErrorIs(err, domain.ErrInvalidInput)
			s.Empty(s.storedFiles())
		})
	}
}

func (s *CatalogServiceSuite) TestUpdateWithImages() {
	p := s.createProduct("Drill", "a.png")
	original := p.Images[0].FileName

	color := "yellow"
	qty := 0
	updated, err := s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{Color: &color, Quantity: &qty}, uploads("b.gif"))
	s.Require().NoError(err)

	s.Equal("Drill", updated.Name)
	s.Equal("Acme", updated.Manufacturer)
	s.Equal("yellow", updated.Color)
	s.Equal(0, updated.Quantity)
	s.True(updated.Price.Equal(p.Price))
	s.True(updated.UpdatedAt.After(p.UpdatedAt))
	s.True(updated.CreatedAt.Equal(p.CreatedAt))

	s.Require().Len(updated.Images, 2)
	s.Equal(original, updated.Images[0].FileName)
	s.Require().NotNil(updated.Images[1].DisplayOrder)
	s.Equal(1, *updated.Images[1].DisplayOrder)

	got, err := s.service.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(got.Images, 2)
	s.Equal("yellow", got.Color)
	s.Len(s.storedFiles(), 2)
}

// imageNames returns the stored image names of a product in display order
func (s *CatalogServiceSuite) imageNames(id int64) []string {
	got, err := s.service.GetProduct(s.ctx, id)
	s.Require().NoError(err)

	names := make([]string, 0, len(got.Images))
	for _, img := range got.Images {
		names = append(names, img.FileName)
	}
	return names
}

func (s *CatalogServiceSuite) TestUpdateWithImages_KeepsImageAddedConcurrently() {
	p := s.createProduct("Drill", "a.png")

	var concurrent *domain.Product
	s.repo.afterGet = func() {
		var err error
		concurrent, err = s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{}, uploads("b.png"))
		s.Require().NoError(err)
	}

	updated, err := s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{}, uploads("c.png"))
	s.Require().NoError(err)

	s.Require().NotNil(concurrent)
	names := s.imageNames(p.ID)
	s.Len(names, 3)
	s.Contains(names, concurrent.Images[1].FileName)
	s.Len(updated.Images, 3)
	s.ElementsMatch(names, s.storedFiles())
}

func (s *CatalogServiceSuite) TestUpdateWithImages_ImageRemovedConcurrently() {
	p := s.createProduct("Drill", "a.png", "z.png")
	removed := p.Images[1]

	s.repo.afterGet = func() {
		s.Require().NoError(s.service.RemoveImage(s.ctx, p.ID, removed.ID))
	}

	_, err := s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{}, uploads("c.png"))
	s.Require().NoError(err)

	names := s.imageNames(p.ID)
	s.Len(names, 2)
	s.NotContains(names, removed.FileName)
	s.ElementsMatch(names, s.storedFiles())
}

func (s *CatalogServiceSuite) TestUpdateWithImages_NotFound() {
	_, err := s.service.UpdateWithImages(s.ctx, 404, domain.ProductUpdate{}, uploads("a.png"))
	s.ErrorIs(err, domain.ErrNotFound)
	s.Empty(s.storedFiles())
}

func (s *CatalogServiceSuite) TestUpdateWithImages_InvalidPatch() {
	p := s.createProduct("Drill")

	empty := ""
	_, err := s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{Name: &empty}, uploads("a.png"))
	s.ErrorIs(err, domain.ErrInvalidInput)
	s.Empty(s.storedFiles())
}

func (s *CatalogServiceSuite) TestUpdateWithImages_PersistenceFailureKeepsOldFiles() {
	p := s.createProduct("Drill", "a.png")
	s.repo.failUpdate = true

	_, err := s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{}, uploads("b.png", "c.png"))
	s.ErrorIs(err, domain.ErrPersistence)

	s.Equal([]string{p.Images[0].FileName}, s.storedFiles())
}

func (s *CatalogServiceSuite) TestUpdateWithImages_StoreFailureKeepsOldFiles() {
	p := s.createProduct("Drill", "a.png")
	s.store.failStoreAt = s.store.storeCalls + 2

	_, err := s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{}, uploads("b.png", "c.png"))
	s.ErrorIs(err, domain.ErrStorage)

	s.Equal([]string{p.Images[0].FileName}, s.storedFiles())
	got, err := s.service.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(got.Images, 1)
}

func (s *CatalogServiceSuite) TestRemoveImage() {
	p := s.createProduct("Drill", "a.png", "b.png")
	target := p.Images[0]

	s.Require().NoError(s.service.RemoveImage(s.ctx, p.ID, target.ID))

	s.Equal([]string{p.Images[1].FileName}, s.storedFiles())
	got, err := s.service.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Images, 1)
	s.Equal(p.Images[1].ID, got.Images[0].ID)

	err = s.service.RemoveImage(s.ctx, p.ID, target.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *CatalogServiceSuite) TestRemoveImage_KeepsImageAddedConcurrently() {
	p := s.createProduct("Drill", "a.png", "z.png")
	target, kept := p.Images[0], p.Images[1]

	var concurrent *domain.Product
	s.repo.afterGet = func() {
		var err error
		concurrent, err = s.service.UpdateWithImages(s.ctx, p.ID, domain.ProductUpdate{}, uploads("b.png"))
		s.Require().NoError(err)
	}

	s.Require().NoError(s.service.RemoveImage(s.ctx, p.ID, target.ID))

	s.Require().NotNil(concurrent)
	names := s.imageNames(p.ID)
	s.Equal([]string{kept.FileName, concurrent.Images[2].FileName}, names)
	s.ElementsMatch(names, s.storedFiles())
}

func (s *CatalogServiceSuite) TestRemoveImage_RemovedConcurrently() {
	p := s.createProduct("Drill", "a.png", "z.png")
	target := p.Images[0]

	s.repo.afterGetImage = func() {
		s.Require().NoError(s.service.RemoveImage(s.ctx, p.ID, target.ID))
	}

	err := s.service.RemoveImage(s.ctx, p.ID, target.ID)
	s.ErrorIs(err, domain.ErrNotFound)

	s.Equal([]string{p.Images[1].FileName}, s.imageNames(p.ID))
	s.Equal([]string{p.Images[1].FileName}, s.storedFiles())
}

func (s *CatalogServiceSuite) TestRemoveImage_MissingFile() {
	p := s.createProduct("Drill", "a.png")
	_, err := s.store.FileStore.Delete(p.Images[0].FileName)
	s.Require().NoError(err)

	s.Require().NoError(s.service.RemoveImage(s.ctx, p.ID, p.Images[0].ID))

	got, err := s.service.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(got.Images)
}

func (s *CatalogServiceSuite) TestRemoveImage_OwnershipMismatch() {
	owner := s.createProduct("Drill", "a.png")
	other := s.createProduct("Saw", "b.png")

	err := s.service.RemoveImage(s.ctx, other.ID, owner.Images[0].ID)
	s.ErrorIs(err, domain.ErrOwnershipMismatch)

	s.Len(s.storedFiles(), 2)
	got, err := s.service.GetProduct(s.ctx, owner.ID)
	s.Require().NoError(err)
	s.Len(got.Images, 1)
}

func (s *CatalogServiceSuite) TestRemoveImage_NotFound() {
	p := s.createProduct("Drill", "a.png")

	s.ErrorIs(s.service.RemoveImage(s.ctx, 999, p.Images[0].ID), domain.ErrNotFound)
	s.ErrorIs(s.service.RemoveImage(s.ctx, p.ID, 999), domain.ErrNotFound)
}

func (s *CatalogServiceSuite) TestRemoveImage_FileDeleteFailureKeepsRow() {
	p := s.createProduct("Drill", "a.png")
	s.store.failDelete = true

	err := s.service.RemoveImage(s.ctx, p.ID, p.Images[0].ID)
	s.ErrorIs(err, domain.ErrStorage)

	got, err := s.service.GetProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(got.Images, 1)
	s.Len(s.storedFiles(), 1)
}

func (s *CatalogServiceSuite) TestRemoveImage_PersistenceFailure() {
	p := s.createProduct("Drill", "a.png")
	s.repo.failReplace = true

	err := s.service.RemoveImage(s.ctx, p.ID, p.Images[0].ID)
	s.ErrorIs(err, domain.ErrPersistence)
}

func (s *CatalogServiceSuite) TestDeleteProduct() {
	p := s.createProduct("Drill", "a.png", "b.png")
	keep := s.createProduct("Saw", "c.png")

	s.Require().NoError(s.service.DeleteProduct(s.ctx, p.ID))

	_, err := s.service.GetProduct(s.ctx, p.ID)
	s.ErrorIs(err, domain.ErrNotFound)
	s.Equal([]string{keep.Images[0].FileName}, s.storedFiles())

	s.ErrorIs(s.service.DeleteProduct(s.ctx, p.ID), domain.ErrNotFound)
}

func (s *CatalogServiceSuite) TestDeleteProduct_FileFailuresDoNotAbort() {
	p := s.createProduct("Drill", "a.png", "b.png")
	s.store.failDelete = true

	s.Require().NoError(s.service.DeleteProduct(s.ctx, p.ID))

	_, err := s.service.GetProduct(s.ctx, p.ID)
	s.ErrorIs(err, domain.ErrNotFound)
	s.Len(s.storedFiles(), 2)
}

func (s *CatalogServiceSuite) TestDeleteProduct_PersistenceFailure() {
	p := s.createProduct("Drill", "a.png")
	s.repo.failDelete = true

	s.ErrorIs(s.service.DeleteProduct(s.ctx, p.ID), domain.ErrPersistence)
}

func (s *CatalogServiceSuite) TestListProducts() {
	s.createProduct("Cordless Drill", "a.png")
	s.createProduct("Hand Saw")
	s.createProduct("drill bits")

	all, err := s.service.ListProducts(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	drills, err := s.service.ListProducts(s.ctx, "  DRILL ")
	s.Require().NoError(err)
	s.Require().Len(drills, 2)
	s.Equal("Cordless Drill", drills[0].Name)
	s.Len(drills[0].Images, 1)
	s.Equal("drill bits", drills[1].Name)
}

func (s *CatalogServiceSuite) TestOpenImage() {
	p := s.createProduct("Drill", "a.png")

	f, info, err := s.service.OpenImage(p.Images[0].FileName)
	s.Require().NoError(err)
	defer f.Close()
	s.Equal(int64(len("bytes of a.png")), info.Size())

	_, _, err = s.service.OpenImage("missing.png")
	s.ErrorIs(err, domain.ErrNotFound)

	_, _, err = s.service.OpenImage("../catalog.db")
	s.ErrorIs(err, domain.ErrInvalidName)
}

func (s *CatalogServiceSuite) TestImport() {
	s.fetcher.responses["https://cdn.example.com/img/drill.png"] = []byte("drill png")
	s.fetcher.responses["https://cdn.example.com/img/saw.jpeg?size=large"] = []byte("saw jpeg")

	items := []ImportItem{
		{Fields: validFields("Drill"), ImageURLs: []string{
			"https://cdn.example.com/img/drill.png",
			"https://cdn.example.com/img/broken.png",
		}},
		{Fields: validFields("Saw"), ImageURLs: []string{"https://cdn.example.com/img/saw.jpeg?size=large"}},
		{Fields: validFields("Hammer"), ImageURLs: []string{"https://cdn.example.com/img/gone.png"}},
	}

	result, err := s.service.Import(s.ctx, items)
	s.Require().NoError(err)

	s.Require().Len(result.Created, 3)
	s.Len(result.Created[0].Images, 1)
	s.Equal(".png", filepath.Ext(result.Created[0].Images[0].FileName))
	s.Len(result.Created[1].Images, 1)
	s.Equal(".jpeg", filepath.Ext(result.Created[1].Images[0].FileName))
	s.Empty(result.Created[2].Images)

	s.Require().Len(result.Failures, 2)
	s.Equal(0, result.Failures[0].Index)
	s.Equal("https://cdn.example.com/img/broken.png", result.Failures[0].URL)
	s.ErrorIs(result.Failures[0].Err, domain.ErrFetch)
	s.Equal(2, result.Failures[1].Index)
	s.Equal("Hammer", result.Failures[1].Name)

	s.Len(s.storedFiles(), 2)
}

func (s *CatalogServiceSuite) TestImport_EmptyPayloadSkipped() {
	s.fetcher.responses["https://cdn.example.com/empty.png"] = []byte{}

	result, err := s.service.Import(s.ctx, []ImportItem{
		{Fields: validFields("Drill"), ImageURLs: []string{"https://cdn.example.com/empty.png"}},
	})
	s.Require().NoError(err)

	s.Require().Len(result.Created, 1)
	s.Empty(result.Created[0].Images)
	s.Require().Len(result.Failures, 1)
	s.ErrorIs(result.Failures[0].Err, domain.ErrEmptyFile)
}

func (s *CatalogServiceSuite) TestImport_SkipInvalid() {
	invalid := validFields("")

	result, err := s.service.Import(s.ctx, []ImportItem{
		{Fields: validFields("Drill")},
		{Fields: invalid, ImageURLs: []string{"https://cdn.example.com/never.png"}},
		{Fields: validFields("Saw")},
	})
	s.Require().NoError(err)

	s.Len(result.Created, 2)
	s.Require().Len(result.Failures, 1)
	s.Equal(1, result.Failures[0].Index)
	s.Empty(result.Failures[0].URL)
	s.ErrorIs(result.Failures[0].Err, domain.ErrInvalidInput)
	s.Empty(s.fetcher.calls)
}

func (s *CatalogServiceSuite) TestImport_AbortOnInvalid() {
	s.fetcher.responses["https://cdn.example.com/drill.png"] = []byte("drill png")
	service := s.newService(WithImportPolicy(ImportAbortOnInvalid))

	bad := validFields("Saw")
	bad.Price = decimal.Zero

	result, err := service.Import(s.ctx, []ImportItem{
		{Fields: validFields("Drill"), ImageURLs: []string{"https://cdn.example.com/drill.png"}},
		{Fields: bad},
	})
	s.ErrorIs(err, domain.ErrInvalidInput)
	s.Nil(result)

	s.Empty(s.fetcher.calls)
	s.Empty(s.storedFiles())
	products, err := s.service.ListProducts(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(products)
}

func (s *CatalogServiceSuite) TestImport_CreateFailureContinues() {
	s.fetcher.responses["https://cdn.example.com/drill.png"] = []byte("drill png")
	s.repo.failCreateFor = "Drill"

	result, err := s.service.Import(s.ctx, []ImportItem{
		{Fields: validFields("Drill"), ImageURLs: []string{"https://cdn.example.com/drill.png"}},
		{Fields: validFields("Saw")},
	})
	s.Require().NoError(err)

	s.Require().Len(result.Created, 1)
	s.Equal("Saw", result.Created[0].Name)
	s.Require().Len(result.Failures, 1)
	s.ErrorIs(result.Failures[0].Err, domain.ErrPersistence)
	s.Empty(s.storedFiles())
}

func (s *CatalogServiceSuite) TestImport_CanceledContextAttemptsEveryItem() {
	s.fetcher.responses["https://img.example.com/drill.png"] = []byte("drill")

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	result, err := s.service.Import(ctx, []ImportItem{
		{Fields: validFields("Drill"), ImageURLs: []string{"https://img.example.com/drill.png"}},
		{Fields: validFields("Saw")},
	})
	s.Require().NoError(err)

	s.Empty(result.Created)
	s.Require().Len(result.Failures, 2)
	for i, f := range result.Failures {
		s.Equal(i, f.Index)
		s.ErrorIs(f.Err, context.Canceled)
	}
	s.Empty(s.storedFiles())
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func TestNameHint(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/a/b/photo.png", "photo.png"},
		{"https://cdn.example.com/photo.JPG?w=100#frag", "photo.JPG"},
		{"https://cdn.example.com/", ""},
		{"https://cdn.example.com", ""},
		{"https://cdn.example.com/images/", "images"},
		{"http://[::1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, nameHint(tt.url))
		})
	}
}

func TestImportPolicy_String(t *testing.T) {
	assert.Equal(t, "skip-invalid", ImportSkipInvalid.String())
	assert.Equal(t, "abort-on-invalid", ImportAbortOnInvalid.String())
	assert.Equal(t, "ImportPolicy(7)", ImportPolicy(7).String())
}

func TestNewCatalogService_Defaults(t *testing.T) {
	service := NewCatalogService(nil, nil, nil)
	require.NotNil(t, service.now)
	assert.Equal(t, ImportSkipInvalid, service.policy)
	assert.Equal(t, time.UTC, service.now().Location())
}
