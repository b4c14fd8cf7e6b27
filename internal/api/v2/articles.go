// internal/api/v2/articles.go
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/lock"
)

// CreateArticleRequest is the body of POST /articles.
type CreateArticleRequest struct {
	Number      string  `json:"number" validate:"max=64"`
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description"`
	Unit        string  `json:"unit" validate:"max=32"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// UpdateArticleRequest is the body of PATCH /articles/:id. Only the fields
// present are written.
type UpdateArticleRequest struct {
	Number      *string  `json:"number" validate:"omitnil,max=64"`
	Title       *string  `json:"title" validate:"omitnil,min=1,max=255"`
	Description *string  `json:"description"`
	Unit        *string  `json:"unit" validate:"omitnil,max=32"`
	Price       *float64 `json:"price" validate:"omitnil,gte=0"`
}

func (r *UpdateArticleRequest) fields() map[string]any {
	fields := make(map[string]any)
	setIf(fields, "number", r.Number)
	setIf(fields, "title", r.Title)
	setIf(fields, "description", r.Description)
	setIf(fields, "unit", r.Unit)
	setIf(fields, "price", r.Price)
	return fields
}

// UpdateCalculationsRequest replaces the calculation document of an article.
type UpdateCalculationsRequest struct {
	Calculations string `json:"calculations" validate:"required,jsondoc"`
}

func (c *Controller) initArticleRoutes(g *echo.Group) {
	g.GET("/:id", c.GetArticle)
	g.POST("", c.CreateArticle)
	g.PATCH("/:id", c.UpdateArticle)
	g.PUT("/:id/calculations", c.UpdateArticleCalculations)
	g.DELETE("/:id", c.DeleteArticle)
}

// GetArticle returns one article including its lock columns.
func (c *Controller) GetArticle(ctx echo.Context) error {
	return getEntity(c, ctx, c.Entities.GetArticle)
}

// CreateArticle creates an unlocked article.
func (c *Controller) CreateArticle(ctx echo.Context) error {
	var req CreateArticleRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	return createEntity(c, ctx, &entities.Article{
		Number:      req.Number,
		Title:       req.Title,
		Description: req.Description,
		Unit:        req.Unit,
		Price:       req.Price,
	}, c.Entities.CreateArticle)
}

// UpdateArticle changes article properties.
func (c *Controller) UpdateArticle(ctx echo.Context) error {
	var req UpdateArticleRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	return updateEntity(c, ctx, lock.Articles, req.fields(), c.Entities.GetArticle)
}

// UpdateArticleCalculations replaces the article calculation document.
func (c *Controller) UpdateArticleCalculations(ctx echo.Context) error {
	var req UpdateCalculationsRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	return updateEntity(c, ctx, lock.Articles, map[string]any{
		"calculations": req.Calculations,
	}, c.Entities.GetArticle)
}

// DeleteArticle removes an article.
func (c *Controller) DeleteArticle(ctx echo.Context) error {
	return c.deleteEntity(ctx, lock.Articles)
}

// setIf copies *v into fields when v is set.
func setIf[T any](fields map[string]any, column string, v *T) {
	if v != nil {
		fields[column] = *v
	}
}
