// internal/api/v2/entities.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/api/auth"
	"github.com/tphakala/quotedesk/internal/datastore"
	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/logger"
)

// EntityStore reads and creates lockable entities. Updates and deletes are
// routed through LockService instead.
type EntityStore interface {
	GetArticle(ctx context.Context, id string) (*entities.Article, error)
	CreateArticle(ctx context.Context, a *entities.Article) error
	GetBlock(ctx context.Context, id string) (*entities.Block, error)
	CreateBlock(ctx context.Context, b *entities.Block) error
	GetQuoteVersion(ctx context.Context, id string) (*entities.QuoteVersion, error)
	CreateQuoteVersion(ctx context.Context, q *entities.QuoteVersion) error
	GetSalesOpportunity(ctx context.Context, id string) (*entities.SalesOpportunity, error)
	CreateSalesOpportunity(ctx context.Context, s *entities.SalesOpportunity) error
}

var _ EntityStore = (*datastore.EntityRepository)(nil)

// getEntity answers GET /:id for one entity type.
func getEntity[T any](c *Controller, ctx echo.Context, load func(context.Context, string) (*T, error)) error {
	entity, err := load(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, datastore.ErrEntityNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "resource not found"})
		}
		return c.HandleError(ctx, err, "failed to load resource", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, entity)
}

// createEntity answers POST / for one entity type.
func createEntity[T any](c *Controller, ctx echo.Context, entity *T, save func(context.Context, *T) error) error {
	if err := save(ctx.Request().Context(), entity); err != nil {
		return c.HandleError(ctx, err, "failed to create resource", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, entity)
}

// updateEntity writes fields through the lock service and answers with the
// stored entity. The row is touched only if the caller may edit it.
func updateEntity[T any](c *Controller, ctx echo.Context, res lock.Resource, fields map[string]any,
	load func(context.Context, string) (*T, error)) error {
	user, err := c.Users.CurrentUser(ctx)
	if err != nil {
		return auth.RespondUnauthenticated(ctx, err)
	}
	if len(fields) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "no fields to update"})
	}
	fields["updated_at"] = time.Now().UTC()

	id := ctx.Param("id")
	reqCtx := ctx.Request().Context()
	if err := c.Locks.Update(reqCtx, res, id, user, fields); err != nil {
		return lockErrorResponse(c.log, ctx, err)
	}

	c.log.Debug("resource updated",
		logger.String("resource_kind", string(res.Kind)),
		logger.String("resource_id", id),
		logger.String("user_id", user.ID),
		logger.Int("fields", len(fields)-1))

	entity, err := load(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err, "failed to reload resource", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, entity)
}

// deleteEntity removes a row through the lock service.
func (c *Controller) deleteEntity(ctx echo.Context, res lock.Resource) error {
	user, err := c.Users.CurrentUser(ctx)
	if err != nil {
		return auth.RespondUnauthenticated(ctx, err)
	}

	id := ctx.Param("id")
	if err := c.Locks.Delete(ctx.Request().Context(), res, id, user); err != nil {
		return lockErrorResponse(c.log, ctx, err)
	}

	c.log.Info("resource deleted",
		logger.String("resource_kind", string(res.Kind)),
		logger.String("resource_id", id),
		logger.String("user_id", user.ID))
	return ctx.NoContent(http.StatusNoContent)
}
