// internal/api/v2/sales_opportunities.go
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/lock"
)

// CreateSalesOpportunityRequest is the body of POST /sales-opportunities.
type CreateSalesOpportunityRequest struct {
	Title    string  `json:"title" validate:"required,max=255"`
	Customer string  `json:"customer" validate:"max=255"`
	Status   string  `json:"status" validate:"max=32"`
	Amount   float64 `json:"amount" validate:"gte=0"`
}

// UpdateSalesOpportunityRequest is the body of PATCH /sales-opportunities/:id.
type UpdateSalesOpportunityRequest struct {
	Title    *string  `json:"title" validate:"omitnil,min=1,max=255"`
	Customer *string  `json:"customer" validate:"omitnil,max=255"`
	Status   *string  `json:"status" validate:"omitnil,max=32"`
	Amount   *float64 `json:"amount" validate:"omitnil,gte=0"`
}

func (c *Controller) initSalesOpportunityRoutes(g *echo.Group) {
	g.GET("/:id", c.GetSalesOpportunity)
	g.POST("", c.CreateSalesOpportunity)
	g.PATCH("/:id", c.UpdateSalesOpportunity)
	g.DELETE("/:id", c.DeleteSalesOpportunity)
}

// GetSalesOpportunity returns one sales opportunity.
func (c *Controller) GetSalesOpportunity(ctx echo.Context) error {
	return getEntity(c, ctx, c.Entities.GetSalesOpportunity)
}

// CreateSalesOpportunity creates an unlocked sales opportunity.
func (c *Controller) CreateSalesOpportunity(ctx echo.Context) error {
	var req CreateSalesOpportunityRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	return createEntity(c, ctx, &entities.SalesOpportunity{
		Title:    req.Title,
		Customer: req.Customer,
		Status:   req.Status,
		Amount:   req.Amount,
	}, c.Entities.CreateSalesOpportunity)
}

// UpdateSalesOpportunity changes the given properties.
func (c *Controller) UpdateSalesOpportunity(ctx echo.Context) error {
	var req UpdateSalesOpportunityRequest
	if handled, err := bindAndValidate(ctx, &req); handled {
		return err
	}
	fields := make(map[string]any)
	setIf(fields, "title", req.Title)
	setIf(fields, "customer", req.Customer)
	setIf(fields, "status", req.Status)
	setIf(fields, "amount", req.Amount)
	return updateEntity(c, ctx, lock.SalesOpportunities, fields, c.Entities.GetSalesOpportunity)
}

// DeleteSalesOpportunity removes a sales opportunity.
func (c *Controller) DeleteSalesOpportunity(ctx echo.Context) error {
	return c.deleteEntity(ctx, lock.SalesOpportunities)
}
