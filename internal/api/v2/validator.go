// internal/api/v2/validator.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/errors"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a validator with the custom "jsondoc" rule, which
// accepts strings holding a valid JSON document.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("jsondoc", validateJSONDocument)
	return &Validator{validate: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

func validateJSONDocument(fl validator.FieldLevel) bool {
	return json.Valid([]byte(fl.Field().String()))
}

// bindAndValidate binds the request body into req and validates it. On
// failure the 400 response has already been written and handled is true.
func bindAndValidate(c echo.Context, req any) (handled bool, err error) {
	if err := c.Bind(req); err != nil {
		return true, c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if err := c.Validate(req); err != nil {
		return true, c.JSON(http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationMessages(err),
		})
	}
	return false, nil
}

// validationMessages flattens validator errors into field -> rule pairs.
func validationMessages(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field()[:1])+fe.Field()[1:]] = fe.Tag()
	}
	return out
}
