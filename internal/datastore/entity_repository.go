package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/datastore/entities"
)

// EntityRepository provides reads and creates for lockable entities. Updates
// and deletes go through the lock service so they are always guarded.
type EntityRepository struct {
	db *gorm.DB
}

// NewEntityRepository creates an entity repository.
func NewEntityRepository(db *gorm.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

func getByID[T any](ctx context.Context, db *gorm.DB, id, operation string) (*T, error) {
	var entity T
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&entity).Error; err != nil {
		return nil, notFound(err, ErrEntityNotFound, operation)
	}
	return &entity, nil
}

func create[T any](ctx context.Context, db *gorm.DB, entity *T, operation string) error {
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		return dbError(err, operation, "")
	}
	return nil
}

// GetArticle returns an article or ErrEntityNotFound.
func (r *EntityRepository) GetArticle(ctx context.Context, id string) (*entities.Article, error) {
	return getByID[entities.Article](ctx, r.db, id, "get_article")
}

// CreateArticle inserts an article.
func (r *EntityRepository) CreateArticle(ctx context.Context, a *entities.Article) error {
	return create(ctx, r.db, a, "create_article")
}

// GetBlock returns a block or ErrEntityNotFound.
func (r *EntityRepository) GetBlock(ctx context.Context, id string) (*entities.Block, error) {
	return getByID[entities.Block](ctx, r.db, id, "get_block")
}

// CreateBlock inserts a block.
func (r *EntityRepository) CreateBlock(ctx context.Context, b *entities.Block) error {
	return create(ctx, r.db, b, "create_block")
}

// GetQuoteVersion returns a quote version or ErrEntityNotFound.
func (r *EntityRepository) GetQuoteVersion(ctx context.Context, id string) (*entities.QuoteVersion, error) {
	return getByID[entities.QuoteVersion](ctx, r.db, id, "get_quote_version")
}

// CreateQuoteVersion inserts a quote version.
func (r *EntityRepository) CreateQuoteVersion(ctx context.Context, q *entities.QuoteVersion) error {
	return create(ctx, r.db, q, "create_quote_version")
}

// GetSalesOpportunity returns a sales opportunity or ErrEntityNotFound.
func (r *EntityRepository) GetSalesOpportunity(ctx context.Context, id string) (*entities.SalesOpportunity, error) {
	return getByID[entities.SalesOpportunity](ctx, r.db, id, "get_sales_opportunity")
}

// CreateSalesOpportunity inserts a sales opportunity.
func (r *EntityRepository) CreateSalesOpportunity(ctx context.Context, s *entities.SalesOpportunity) error {
	return create(ctx, r.db, s, "create_sales_opportunity")
}
