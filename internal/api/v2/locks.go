// internal/api/v2/locks.go
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/api/auth"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/logger"
)

// LockService is the subset of *lock.Service used by the HTTP layer.
type LockService interface {
	Status(ctx context.Context, res lock.Resource, id string) (*lock.Status, error)
	Acquire(ctx context.Context, res lock.Resource, id string, actor lock.User, force bool) error
	Release(ctx context.Context, res lock.Resource, id string, actor lock.User) error
	Update(ctx context.Context, res lock.Resource, id string, actor lock.User, fields map[string]any) error
	Delete(ctx context.Context, res lock.Resource, id string, actor lock.User) error
	ReleaseAllForUser(ctx context.Context, actor lock.User) (lock.BulkReleaseResult, error)
}

var _ LockService = (*lock.Service)(nil)

// LockStatusResponse is the body of GET /:id/lock.
type LockStatusResponse struct {
	IsLocked     bool       `json:"isLocked"`
	LockedBy     *string    `json:"lockedBy"`
	LockedByName *string    `json:"lockedByName"`
	LockedAt     *time.Time `json:"lockedAt"`
}

// SuccessResponse is the body of successful lock mutations.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// LockConflictResponse is the 409 body of an unforced acquire.
type LockConflictResponse struct {
	Error        string `json:"error"`
	LockedBy     string `json:"lockedBy"`
	LockedByName string `json:"lockedByName"`
}

// EditLockResponse is the 409 body of a rejected write.
type EditLockResponse struct {
	Error      string    `json:"error"`
	Type       string    `json:"type"`
	ResourceID string    `json:"resourceId"`
	LockedBy   string    `json:"lockedBy"`
	LockedAt   time.Time `json:"lockedAt"`
}

// EditLockErrorType is the discriminator of EditLockResponse.
const EditLockErrorType = "EDIT_LOCK_ERROR"

// lockRoutes serves the status, acquire and release triple of one resource type.
type lockRoutes struct {
	res   lock.Resource
	svc   LockService
	users auth.Resolver
	log   logger.Logger
}

// RegisterLockRoutes registers GET, POST and DELETE on /:id/lock for res.
// The acting user is resolved before any lock logic runs. mw is applied to
// the mutating routes only.
func RegisterLockRoutes(g *echo.Group, res lock.Resource, svc LockService, users auth.Resolver, mw ...echo.MiddlewareFunc) {
	r := &lockRoutes{
		res:   res,
		svc:   svc,
		users: users,
		log:   GetLogger().With(logger.String("resource_kind", string(res.Kind))),
	}

	g.GET("/:id/lock", r.status)
	g.POST("/:id/lock", r.acquire, mw...)
	g.DELETE("/:id/lock", r.release, mw...)
}

func (r *lockRoutes) status(c echo.Context) error {
	if _, err := r.users.CurrentUser(c); err != nil {
		return auth.RespondUnauthenticated(c, err)
	}

	st, err := r.svc.Status(c.Request().Context(), r.res, c.Param("id"))
	if err != nil {
		return lockErrorResponse(r.log, c, err)
	}

	return c.JSON(http.StatusOK, LockStatusResponse{
		IsLocked:     st.IsLocked,
		LockedBy:     st.LockedBy,
		LockedByName: st.LockedByName,
		LockedAt:     st.LockedAt,
	})
}

func (r *lockRoutes) acquire(c echo.Context) error {
	user, err := r.users.CurrentUser(c)
	if err != nil {
		return auth.RespondUnauthenticated(c, err)
	}

	force := false
	if raw := c.QueryParam("force"); raw != "" {
		force, err = strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "force must be true or false",
			})
		}
	}

	if err := r.svc.Acquire(c.Request().Context(), r.res, c.Param("id"), user, force); err != nil {
		return lockErrorResponse(r.log, c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (r *lockRoutes) release(c echo.Context) error {
	user, err := r.users.CurrentUser(c)
	if err != nil {
		return auth.RespondUnauthenticated(c, err)
	}

	if err := r.svc.Release(c.Request().Context(), r.res, c.Param("id"), user); err != nil {
		return lockErrorResponse(r.log, c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// lockErrorResponse maps lock errors to their HTTP responses. Anything that
// is not a lock error is logged and answered with a generic 500.
func lockErrorResponse(log logger.Logger, c echo.Context, err error) error {
	var (
		notFound *lock.NotFoundError
		editLock *lock.EditLockError
		conflict *lock.LockConflictError
		denied   *lock.UnlockPermissionError
	)

	switch {
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFound.Message})

	case errors.As(err, &editLock):
		return c.JSON(http.StatusConflict, EditLockResponse{
			Error:      editLock.Message,
			Type:       EditLockErrorType,
			ResourceID: editLock.ResourceID,
			LockedBy:   editLock.LockedBy,
			LockedAt:   editLock.LockedAt,
		})

	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, LockConflictResponse{
			Error:        conflict.Message,
			LockedBy:     conflict.LockedBy,
			LockedByName: conflict.LockedByName,
		})

	case errors.As(err, &denied):
		return c.JSON(http.StatusForbidden, map[string]string{"error": denied.Message})

	case errors.Is(err, lock.ErrLockColumnWrite), errors.Is(err, lock.ErrNoFields):
		return handleError(log, c, err, "invalid update", http.StatusBadRequest)

	case errors.Is(err, lock.ErrContended):
		return handleError(log, c, err, "resource is busy, retry", http.StatusConflict)

	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written
		return nil

	default:
		return handleError(log, c, err, "lock operation failed", http.StatusInternalServerError)
	}
}

// UnlockAllResponse is the body of the bulk release endpoint.
type UnlockAllResponse struct {
	Success    bool  `json:"success"`
	Operations int   `json:"operations"`
	Released   int64 `json:"released"`
}

// UnlockAll releases every lock held by the caller across all resource types.
func (c *Controller) UnlockAll(ctx echo.Context) error {
	user, err := c.Users.CurrentUser(ctx)
	if err != nil {
		return auth.RespondUnauthenticated(ctx, err)
	}

	result, err := c.Locks.ReleaseAllForUser(ctx.Request().Context(), user)
	if err != nil {
		return c.HandleError(ctx, err, "failed to release locks", http.StatusInternalServerError)
	}

	c.log.Info("user released all locks",
		logger.String("user_id", user.ID),
		logger.Int("operations", result.Operations),
		logger.Int64("released", result.Released))

	return ctx.JSON(http.StatusOK, UnlockAllResponse{
		Success:    true,
		Operations: result.Operations,
		Released:   result.Released,
	})
}
