// Package datastore provides GORM-backed storage for lockable resources and users.
package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/logger"
)

// Sentinel errors for repository operations.
var (
	// ErrNotInitialized indicates Open was not called or failed.
	ErrNotInitialized = errors.NewStd("database connection is not initialized")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.NewStd("user not found")

	// ErrEntityNotFound indicates the requested entity does not exist.
	ErrEntityNotFound = errors.NewStd("entity not found")

	// ErrInvalidIdentifier rejects table or column names that are not plain SQL identifiers.
	ErrInvalidIdentifier = errors.NewStd("invalid SQL identifier")
)

func getLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// notFound maps gorm.ErrRecordNotFound to sentinel, leaving other errors as database errors.
func notFound(err, sentinel error, operation string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New(sentinel).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("operation", operation).
			Build()
	}
	return dbError(err, operation, "")
}
