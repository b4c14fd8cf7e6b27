// internal/api/v2/blocks.go
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/lock"
)

// CreateBlockRequest is the body of POST /blocks.
type CreateBlockRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Content string `json:"content"`
}

// UpdateBlockContentRequest replaces the content of a block.
type UpdateBlockContentRequest struct {
	Content *string `json:"content" validate:"required"`
}

// UpdateBlockRequest is the body of PATCH /blocks/:id.
type UpdateBlockRequest struct {
	Name *string `json:"name" validate:"omitnil,min=1,max=255"`
}

func (c *Controller) initBlockRoutes(g *echo.Group) {
	g.GET("/:id", c.GetBlock)
	g.POST("", c.CreateBlock)
	g.PATCH("/:id", c.UpdateBlock)
	g.PUT("/:id/content", c.UpdateBlockContent)
	g.DELETE("/:id", c.DeleteBlock)
}

// GetBlock returns one block.
func (c *Controller) GetBlock(ctx echo.Context) error {
	return getEntity(c, ctx, c.Entities.GetBlock)
}

// CreateBlock creates an unlocked block.
func (c *Controller) CreateBlock(ctx echo.Context) error {
	var req CreateBlockRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	return createEntity(c, ctx, &entities.Block{Name: req.Name, Content: req.Content}, c.Entities.CreateBlock)
}

// UpdateBlock renames a block.
func (c *Controller) UpdateBlock(ctx echo.Context) error {
	var req UpdateBlockRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	fields := make(map[string]any)
	setIf(fields, "name", req.Name)
	return updateEntity(c, ctx, lock.Blocks, fields, c.Entities.GetBlock)
}

// UpdateBlockContent replaces the block content.
func (c *Controller) UpdateBlockContent(ctx echo.Context) error {
	var req UpdateBlockContentRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	return updateEntity(c, ctx, lock.Blocks, map[string]any{"content": *req.Content}, c.Entities.GetBlock)
}

// DeleteBlock removes a block.
func (c *Controller) DeleteBlock(ctx echo.Context) error {
	return c.deleteEntity(ctx, lock.Blocks)
}
