package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dfryer1193/gocatalog/catalog/domain"
	"github.com/dfryer1193/gocatalog/shared/db"
	"github.com/dfryer1193/mjolnir/utils/set"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var _ domain.ProductRepository = (*SQLiteProductRepository)(nil)

// SQLiteProductRepository implements domain.ProductRepository using SQLite.
// Images are always read together with their product.
type SQLiteProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new SQLiteProductRepository
func NewProductRepository(sqlDB *sqlx.DB) *SQLiteProductRepository {
	return &SQLiteProductRepository{
		db: sqlDB,
	}
}

const insertProductQuery = `
	INSERT INTO products (name, description, manufacturer, color, price, quantity, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateProduct inserts the product and its attached images in one transaction.
// Ids are assigned to p and its images only after the commit succeeds.
func (r *SQLiteProductRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p == nil {
		return fmt.Errorf("product cannot be nil")
	}
	if p.ID != 0 {
		return fmt.Errorf("product already persisted with id %d", p.ID)
	}

	var productID int64
	var imageIDs []int64

	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		res, err := executor.ExecContext(txCtx, insertProductQuery,
			p.Name,
			p.Description,
			p.Manufacturer,
			p.Color,
			p.Price,
			p.Quantity,
			p.CreatedAt.UTC(),
			p.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}

		productID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read product id: %w", err)
		}

		imageIDs, err = insertImages(txCtx, executor, productID, p.Images)
		return err
	})
	if err != nil {
		return err
	}

	p.ID = productID
	for i, img := range p.Images {
		img.ID = imageIDs[i]
		img.ProductID = productID
	}
	return nil
}

const updateProductQuery = `
	UPDATE products
	SET name = ?, description = ?, manufacturer = ?, color = ?, price = ?, quantity = ?, updated_at = ?
	WHERE id = ?
`

// UpdateProduct writes the product fields and appends the images of p that
// have no id yet. The append is applied to the rows stored at write time,
// so images other writers added or removed since p was read are kept as
// they are. On success p.Images holds the stored collection.
func (r *SQLiteProductRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if p == nil {
		return fmt.Errorf("product cannot be nil")
	}

	var desired []*domain.Image
	var diff *domain.ImageDiff
	var insertedIDs []int64

	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		res, err := executor.ExecContext(txCtx, updateProductQuery,
			p.Name,
			p.Description,
			p.Manufacturer,
			p.Color,
			p.Price,
			p.Quantity,
			p.UpdatedAt.UTC(),
			p.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		} else if n == 0 {
			return domain.ProductNotFound(p.ID)
		}

		stored, err := selectImages(txCtx, executor, p.ID)
		if err != nil {
			return err
		}

		desired = stored
		for _, img := range p.Images {
			if img.ID == 0 {
				desired = append(desired, img)
			}
		}

		diff, insertedIDs, err = applyImageDiff(txCtx, executor, p.ID, stored, desired)
		return err
	})
	if err != nil {
		return err
	}

	assignInsertedIDs(p.ID, diff, insertedIDs)
	p.Images = desired
	return nil
}

// ReplaceImages makes the stored images of a product equal to the set edit
// returns. edit receives the rows stored at write time inside the
// transaction. Images in the result without an id are inserted, stored
// images missing from it are deleted.
func (r *SQLiteProductRepository) ReplaceImages(ctx context.Context, productID int64, edit domain.ImageEdit) (*domain.ImageDiff, error) {
	var diff *domain.ImageDiff
	var insertedIDs []int64

	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		exists, err := productExists(txCtx, executor, productID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ProductNotFound(productID)
		}

		stored, err := selectImages(txCtx, executor, productID)
		if err != nil {
			return err
		}

		diff, insertedIDs, err = applyImageDiff(txCtx, executor, productID, stored, edit(stored))
		return err
	})
	if err != nil {
		return nil, err
	}

	assignInsertedIDs(productID, diff, insertedIDs)
	return diff, nil
}

func assignInsertedIDs(productID int64, diff *domain.ImageDiff, ids []int64) {
	for i, img := range diff.Inserted {
		img.ID = ids[i]
		img.ProductID = productID
	}
}

const deleteImageQuery = `
	DELETE FROM product_images WHERE id = ? AND product_id = ?
`

func applyImageDiff(ctx context.Context, executor db.Executor, productID int64, stored, desired []*domain.Image) (*domain.ImageDiff, []int64, error) {
	storedIDs := set.New[int64]()
	for _, img := range stored {
		storedIDs.Add(img.ID)
	}

	diff := &domain.ImageDiff{}
	keep := set.New[int64]()
	names := set.New[string]()

	for _, img := range desired {
		if names.Contains(img.FileName) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrDuplicateImage, img.FileName)
		}
		names.Add(img.FileName)

		if img.ID == 0 {
			diff.Inserted = append(diff.Inserted, img)
			continue
		}
		if !storedIDs.Contains(img.ID) {
			return nil, nil, fmt.Errorf("%w: image %d is not owned by product %d", domain.ErrOwnershipMismatch, img.ID, productID)
		}
		keep.Add(img.ID)
	}

	for _, img := range stored {
		if keep.Contains(img.ID) {
			continue
		}
		if _, err := executor.ExecContext(ctx, deleteImageQuery, img.ID, productID); err != nil {
			return nil, nil, fmt.Errorf("failed to delete image %d: %w", img.ID, err)
		}
		diff.Deleted = append(diff.Deleted, img)
	}

	ids, err := insertImages(ctx, executor, productID, diff.Inserted)
	if err != nil {
		return nil, nil, err
	}

	return diff, ids, nil
}

const insertImageQuery = `
	INSERT INTO product_images (product_id, file_name, display_order, created_at)
	VALUES (?, ?, ?, ?)
`

func insertImages(ctx context.Context, executor db.Executor, productID int64, images []*domain.Image) ([]int64, error) {
	ids := make([]int64, 0, len(images))
	for _, img := range images {
		if img.FileName == "" {
			return nil, fmt.Errorf("image file name cannot be empty")
		}

		var order any
		if img.DisplayOrder != nil {
			order = *img.DisplayOrder
		}

		res, err := executor.ExecContext(ctx, insertImageQuery, productID, img.FileName, order, img.CreatedAt.UTC())
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateImage, img.FileName)
			}
			return nil, fmt.Errorf("failed to insert image %s: %w", img.FileName, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read image id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const getProductQuery = `
	SELECT id, name, description, manufacturer, color, price, quantity, created_at, updated_at
	FROM products
	WHERE id = ?
`

// GetProduct retrieves a product together with all of its images
func (r *SQLiteProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product *domain.Product

	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		var row productRow
		err := executor.GetContext(txCtx, &row, getProductQuery, id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductNotFound(id)
		}
		if err != nil {
			return fmt.Errorf("failed to get product: %w", err)
		}

		images, err := selectImages(txCtx, executor, id)
		if err != nil {
			return err
		}

		product = row.toDomain()
		product.Images = images
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

const listProductsQuery = `
	SELECT id, name, description, manufacturer, color, price, quantity, created_at, updated_at
	FROM products
	ORDER BY id
`

// ListProducts retrieves all products with their images
func (r *SQLiteProductRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return r.listWithImages(ctx, listProductsQuery)
}

const searchProductsQuery = `
	SELECT id, name, description, manufacturer, color, price, quantity, created_at, updated_at
	FROM products
	WHERE fold_case(name) LIKE '%' || fold_case(?) || '%' ESCAPE '\'
	ORDER BY id
`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchProductsByName retrieves products whose name contains name, ignoring case
func (r *SQLiteProductRepository) SearchProductsByName(ctx context.Context, name string) ([]*domain.Product, error) {
	return r.listWithImages(ctx, searchProductsQuery, likeEscaper.Replace(name))
}

func (r *SQLiteProductRepository) listWithImages(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	products := make([]*domain.Product, 0)

	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		var rows []productRow
		if err := executor.SelectContext(txCtx, &rows, query, args...); err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]int64, len(rows))
		byID := make(map[int64]*domain.Product, len(rows))
		for i := range rows {
			p := rows[i].toDomain()
			ids[i] = p.ID
			byID[p.ID] = p
			products = append(products, p)
		}

		images, err := selectImagesFor(txCtx, executor, ids)
		if err != nil {
			return err
		}
		for _, img := range images {
			owner := byID[img.ProductID]
			owner.Images = append(owner.Images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return products, nil
}

const productExistsQuery = `
	SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)
`

// ProductExists reports whether a product row with id exists
func (r *SQLiteProductRepository) ProductExists(ctx context.Context, id int64) (bool, error) {
	return productExists(ctx, db.GetExecutor(ctx, r.db), id)
}

func productExists(ctx context.Context, executor db.Executor, id int64) (bool, error) {
	var exists bool
	if err := executor.GetContext(ctx, &exists, productExistsQuery, id); err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return exists, nil
}

const (
	deleteProductImagesQuery = `DELETE FROM product_images WHERE product_id = ?`
	deleteProductQuery       = `DELETE FROM products WHERE id = ?`
)

// DeleteProduct removes the product and every image row it owns
func (r *SQLiteProductRepository) DeleteProduct(ctx context.Context, id int64) error {
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		if _, err := executor.ExecContext(txCtx, deleteProductImagesQuery, id); err != nil {
			return fmt.Errorf("failed to delete product images: %w", err)
		}

		res, err := executor.ExecContext(txCtx, deleteProductQuery, id)
		if err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return domain.ProductNotFound(id)
		}
		return nil
	})
}

const getImageQuery = `
	SELECT id, product_id, file_name, display_order, created_at
	FROM product_images
	WHERE id = ?
`

// GetImage retrieves a single image row by id
func (r *SQLiteProductRepository) GetImage(ctx context.Context, id int64) (*domain.Image, error) {
	var row imageRow
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &row, getImageQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ImageNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return row.toDomain(), nil
}

const selectImagesQuery = `
	SELECT id, product_id, file_name, display_order, created_at
	FROM product_images
	WHERE product_id = ?
	ORDER BY display_order IS NULL, display_order, id
`

func selectImages(ctx context.Context, executor db.Executor, productID int64) ([]*domain.Image, error) {
	var rows []imageRow
	if err := executor.SelectContext(ctx, &rows, selectImagesQuery, productID); err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return imageRows(rows).toDomain(), nil
}

const selectImagesForQuery = `
	SELECT id, product_id, file_name, display_order, created_at
	FROM product_images
	WHERE product_id IN (?)
	ORDER BY product_id, display_order IS NULL, display_order, id
`

func selectImagesFor(ctx context.Context, executor db.Executor, productIDs []int64) ([]*domain.Image, error) {
	query, args, err := sqlx.In(selectImagesForQuery, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build image query: %w", err)
	}

	var rows []imageRow
	if err := executor.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return imageRows(rows).toDomain(), nil
}

// productRow is a private struct used to scan product rows
type productRow struct {
	ID           int64           `db:"id"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	Manufacturer string          `db:"manufacturer"`
	Color        string          `db:"color"`
	Price        decimal.Decimal `db:"price"`
	Quantity     int             `db:"quantity"`
	CreatedAt    sql.NullTime    `db:"created_at"`
	UpdatedAt    sql.NullTime    `db:"updated_at"`
}

func (pr *productRow) toDomain() *domain.Product {
	p := &domain.Product{
		ID:           pr.ID,
		Name:         pr.Name,
		Description:  pr.Description,
		Manufacturer: pr.Manufacturer,
		Color:        pr.Color,
		Price:        pr.Price,
		Quantity:     pr.Quantity,
		Images:       []*domain.Image{},
	}

	if pr.CreatedAt.Valid {
		p.CreatedAt = pr.CreatedAt.Time
	}
	if pr.UpdatedAt.Valid {
		p.UpdatedAt = pr.UpdatedAt.Time
	}

	return p
}

// imageRow is a private struct used to scan image rows
type imageRow struct {
	ID           int64         `db:"id"`
	ProductID    int64         `db:"product_id"`
	FileName     string        `db:"file_name"`
	DisplayOrder sql.NullInt64 `db:"display_order"`
	CreatedAt    sql.NullTime  `db:"created_at"`
}

func (ir *imageRow) toDomain() *domain.Image {
	img := &domain.Image{
		ID:        ir.ID,
		ProductID: ir.ProductID,
		FileName:  ir.FileName,
	}

	if ir.DisplayOrder.Valid {
		order := int(ir.DisplayOrder.Int64)
		img.DisplayOrder = &order
	}
	if ir.CreatedAt.Valid {
		img.CreatedAt = ir.CreatedAt.Time
	}

	return img
}

type imageRows []imageRow

func (rows imageRows) toDomain() []*domain.Image {
	images := make([]*domain.Image, len(rows))
	for i := range rows {
		images[i] = rows[i].toDomain()
	}
	return images
}
