// internal/api/v2/quote_versions.go
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/lock"
)

// CreateQuoteVersionRequest is the body of POST /quote-versions.
type CreateQuoteVersionRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content"`
}

// UpdateQuoteVersionRequest is the body of PATCH /quote-versions/:id.
type UpdateQuoteVersionRequest struct {
	Title   *string `json:"title" validate:"omitnil,min=1,max=255"`
	Content *string `json:"content"`
	Status  *string `json:"status" validate:"omitnil,oneof=draft sent accepted rejected"`
}

func (c *Controller) initQuoteVersionRoutes(g *echo.Group) {
	g.GET("/:id", c.GetQuoteVersion)
	g.POST("", c.CreateQuoteVersion)
	g.PATCH("/:id", c.UpdateQuoteVersion)
	g.DELETE("/:id", c.DeleteQuoteVersion)
}

// GetQuoteVersion returns one quote version.
func (c *Controller) GetQuoteVersion(ctx echo.Context) error {
	return getEntity(c, ctx, c.Entities.GetQuoteVersion)
}

// CreateQuoteVersion creates an unlocked draft.
func (c *Controller) CreateQuoteVersion(ctx echo.Context) error {
	var req CreateQuoteVersionRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	return createEntity(c, ctx, &entities.QuoteVersion{
		Title:   req.Title,
		Content: req.Content,
		Status:  entities.QuoteStatusDraft,
	}, c.Entities.CreateQuoteVersion)
}

// UpdateQuoteVersion changes title, content or status.
func (c *Controller) UpdateQuoteVersion(ctx echo.Context) error {
	var req UpdateQuoteVersionRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	fields := make(map[string]any)
	setIf(fields, "title", req.Title)
	setIf(fields, "content", req.Content)
	setIf(fields, "status", req.Status)
	return updateEntity(c, ctx, lock.QuoteVersions, fields, c.Entities.GetQuoteVersion)
}

// DeleteQuoteVersion removes a quote version.
func (c *Controller) DeleteQuoteVersion(ctx echo.Context) error {
	return c.deleteEntity(ctx, lock.QuoteVersions)
}
