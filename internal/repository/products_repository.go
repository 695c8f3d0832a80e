package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"product-importer/internal/models"
)

// ProductCacheTTL bounds how stale a cached single-product read may be.
const ProductCacheTTL = 5 * time.Minute

// allowedOrderings maps API ordering names to columns.
var allowedOrderings = map[string]string{
	"sku":        "sku",
	"name":       "name",
	"price":      "price",
	"created_at": "created_at",
}

type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewProductsRepository(db *gorm.DB, redisClient *redis.Client) *ProductsRepository {
	return &ProductsRepository{
		db:    db,
		redis: redisClient,
	}
}

func productCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("product-importer:product:%s", id.String())
}

func (r *ProductsRepository) invalidateProductCache(ctx context.Context, id uuid.UUID) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, productCacheKey(id)).Err()
}

// CreateProduct creates a new product
func (r *ProductsRepository) CreateProduct(product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()
	return r.db.Create(product).Error
}

// GetProductByID retrieves a product by ID with caching
func (r *ProductsRepository) GetProductByID(id uuid.UUID) (*models.Product, error) {
	ctx := context.Background()
	cacheKey := productCacheKey(id)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(val), &product); err == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}

	return &product, nil
}

// GetProductBySKU retrieves a product by its case-normalized SKU
func (r *ProductsRepository) GetProductBySKU(sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.First(&product, "sku = ?", models.NormalizeSKU(sku)).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct applies the given field updates to a product
func (r *ProductsRepository) UpdateProduct(id uuid.UUID, updates map[string]interface{}) (*models.Product, error) {
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	r.invalidateProductCache(context.Background(), id)

	var product models.Product
	if err := r.db.First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product by ID
func (r *ProductsRepository) DeleteProduct(id uuid.UUID) error {
	result := r.db.Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateProductCache(context.Background(), id)
	return nil
}

// DeleteAllProducts removes every product and returns the deleted count.
// Callers are expected to have validated the confirmation flag.
func (r *ProductsRepository) DeleteAllProducts() (int64, error) {
	var count int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Count(&count).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Product{}).Error
	})
	return count, err
}

// GetProducts retrieves products with filters, ordering and pagination
func (r *ProductsRepository) GetProducts(req *models.ListProductsRequest) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.Model(&models.Product{})

	if req.SKU != "" {
		query = query.Where("sku LIKE ?", "%"+models.NormalizeSKU(req.SKU)+"%")
	}
	if req.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(req.Name)+"%")
	}
	if req.Description != "" {
		query = query.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(req.Description)+"%")
	}
	if req.Active != nil {
		query = query.Where("active = ?", *req.Active)
	}
	if req.Search != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(req.Search)) + "%"
		query = query.Where("sku LIKE ? OR LOWER(name) LIKE ? OR LOWER(description) LIKE ?",
			"%"+models.NormalizeSKU(req.Search)+"%", term, term)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(orderingClause(req.Ordering))

	offset := (req.Page - 1) * req.Limit
	if err := query.Offset(offset).Limit(req.Limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func orderingClause(ordering string) string {
	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		ordering = ordering[1:]
	}
	column, ok := allowedOrderings[ordering]
	if !ok {
		return "created_at DESC"
	}
	return fmt.Sprintf("%s %s", column, direction)
}

// UpsertOutcome describes how a single upsert resolved.
type UpsertOutcome struct {
	Product *models.Product
	Created bool
}

// Upsert inserts or updates a product keyed by its case-normalized SKU as a
// single transactional unit. On update, name/description/price/active are
// overwritten and updatedAt refreshed; identity (id, createdAt) is stable.
func (r *ProductsRepository) Upsert(product *models.Product) (bool, error) {
	outcome, err := upsertTx(r.db, product)
	if err != nil {
		return false, err
	}
	if !outcome.Created {
		r.invalidateProductCache(context.Background(), outcome.Product.ID)
	}
	return outcome.Created, nil
}

func upsertTx(db *gorm.DB, product *models.Product) (UpsertOutcome, error) {
	var outcome UpsertOutcome
	product.SKU = models.NormalizeSKU(product.SKU)

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.Product
		err := tx.First(&existing, "sku = ?", product.SKU).Error

		switch {
		case err == nil:
			product.ID = existing.ID
			product.CreatedAt = existing.CreatedAt
			product.UpdatedAt = time.Now()
			if err := tx.Model(&models.Product{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"name":        product.Name,
					"description": product.Description,
					"price":       product.Price,
					"active":      product.Active,
					"updated_at":  product.UpdatedAt,
				}).Error; err != nil {
				return err
			}
			outcome = UpsertOutcome{Product: product, Created: false}
			return nil

		case err == gorm.ErrRecordNotFound:
			if product.ID == uuid.Nil {
				product.ID = uuid.New()
			}
			product.CreatedAt = time.Now()
			product.UpdatedAt = time.Now()
			if err := tx.Create(product).Error; err != nil {
				return err
			}
			outcome = UpsertOutcome{Product: product, Created: true}
			return nil

		default:
			return err
		}
	})

	return outcome, err
}

// BatchUpsertResult aggregates one batch commit. UpdatedIDs lists the
// products that existed before the batch and whose cached representation
// was invalidated.
type BatchUpsertResult struct {
	Created    int
	Updated    int
	UpdatedIDs []uuid.UUID
}

// UpsertBatch commits a whole batch of products as one transaction. Either
// every row in the batch lands or none of it does.
func (r *ProductsRepository) UpsertBatch(products []*models.Product) (*BatchUpsertResult, error) {
	result := &BatchUpsertResult{}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, product := range products {
			outcome, err := upsertTx(tx, product)
			if err != nil {
				return fmt.Errorf("upsert sku %q: %w", product.SKU, err)
			}
			if outcome.Created {
				result.Created++
			} else {
				result.Updated++
				result.UpdatedIDs = append(result.UpdatedIDs, outcome.Product.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	for _, id := range result.UpdatedIDs {
		r.invalidateProductCache(ctx, id)
	}

	return result, nil
}

// ReleaseIdleConns closes idle database handles. The import pipeline calls
// this periodically during long runs so a multi-hour import does not pin
// connections opened at its start.
func (r *ProductsRepository) ReleaseIdleConns() {
	sqlDB, err := r.db.DB()
	if err != nil {
		return
	}
	maxIdle := sqlDB.Stats().Idle
	sqlDB.SetMaxIdleConns(0)
	if maxIdle < 2 {
		maxIdle = 2
	}
	sqlDB.SetMaxIdleConns(maxIdle)
}
