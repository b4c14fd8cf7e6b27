// Package lock implements row-level edit locks for shared quotation resources.
//
// A lock is the (blocked, blocked_by) column pair on the resource row itself.
// The row is the only source of truth: every check re-reads it and nothing in
// this package caches lock state.
package lock

import (
	"fmt"
	"time"

	"github.com/tphakala/quotedesk/internal/errors"
)

// Kind identifies a lockable resource type. It doubles as the URL segment
// used by the lock routes.
type Kind string

const (
	KindArticle          Kind = "article"
	KindBlock            Kind = "block"
	KindQuoteVersion     Kind = "quote-version"
	KindSalesOpportunity Kind = "sales-opportunity"
)

// Columns names the three lock-relevant columns of a resource table.
type Columns struct {
	ID        string
	Blocked   string
	BlockedBy string
}

// DefaultColumns is the column layout shared by all built-in resources.
var DefaultColumns = Columns{ID: "id", Blocked: "blocked", BlockedBy: "blocked_by"}

// UserDirectory describes where lock holder display names are resolved.
type UserDirectory struct {
	Table      string
	IDColumn   string
	NameColumn string
}

// DefaultUserDirectory points at the users table.
var DefaultUserDirectory = UserDirectory{Table: "users", IDColumn: "id", NameColumn: "name"}

// Messages are the human readable texts returned to clients for one resource type.
type Messages struct {
	NotFound     string // resource does not exist
	Locked       string // guarded write rejected
	Conflict     string // unforced acquire rejected
	UnlockDenied string // release by a non-holder
}

// Resource is the plain-data description of one lockable resource type.
type Resource struct {
	Kind     Kind
	Name     string // display name, e.g. "Article"
	Table    string
	Columns  Columns
	Messages Messages
}

// NewResource returns a resource with the default column layout and messages
// derived from name.
func NewResource(kind Kind, name, table string) Resource {
	return Resource{
		Kind:    kind,
		Name:    name,
		Table:   table,
		Columns: DefaultColumns,
		Messages: Messages{
			NotFound:     name + " not found",
			Locked:       name + " is currently being edited by another user",
			Conflict:     name + " is already locked by another user",
			UnlockDenied: name + " is locked by another user and cannot be unlocked",
		},
	}
}

// Validate reports configuration mistakes that would otherwise surface as SQL errors.
func (r *Resource) Validate() error {
	switch {
	case r.Kind == "":
		return errors.ValidationError("lock resource kind must not be empty")
	case r.Table == "":
		return errors.ValidationError(fmt.Sprintf("lock resource %q has no table", r.Kind))
	case r.Columns.ID == "" || r.Columns.Blocked == "" || r.Columns.BlockedBy == "":
		return errors.ValidationError(fmt.Sprintf("lock resource %q has incomplete columns", r.Kind))
	}
	return nil
}

// IsLockColumn reports whether column is one of the lock columns. Lock columns
// are only ever written through the lock protocol.
func (r *Resource) IsLockColumn(column string) bool {
	return column == r.Columns.ID || column == r.Columns.Blocked || column == r.Columns.BlockedBy
}

// Built-in lockable resources.
var (
	Articles           = NewResource(KindArticle, "Article", "articles")
	Blocks             = NewResource(KindBlock, "Block", "blocks")
	QuoteVersions      = NewResource(KindQuoteVersion, "Quote version", "quote_versions")
	SalesOpportunities = NewResource(KindSalesOpportunity, "Sales opportunity", "sales_opportunities")
)

// DefaultResources returns every built-in lockable resource type.
func DefaultResources() []Resource {
	return []Resource{Articles, Blocks, QuoteVersions, SalesOpportunities}
}

// User is the acting user of a request.
type User struct {
	ID   string
	Name string
}

// State is the lock-relevant snapshot of one resource row.
type State struct {
	ID            string
	Blocked       *time.Time
	BlockedBy     *string
	BlockedByName *string
}

// IsLocked reports whether the row currently carries a lock.
func (s *State) IsLocked() bool {
	return s.Blocked != nil
}

// HeldBy reports whether userID holds the lock.
func (s *State) HeldBy(userID string) bool {
	return s.IsLocked() && s.BlockedBy != nil && *s.BlockedBy == userID
}

func (s *State) holder() string {
	if s.BlockedBy == nil {
		return ""
	}
	return *s.BlockedBy
}

func (s *State) holderName() string {
	if s.BlockedByName == nil {
		return ""
	}
	return *s.BlockedByName
}

// Status is the client-facing view of a lock.
type Status struct {
	IsLocked     bool
	LockedBy     *string
	LockedByName *string
	LockedAt     *time.Time
}

// HeldLock is one entry of a lock listing.
type HeldLock struct {
	Kind  Kind
	State State
}

// BulkReleaseResult summarizes ReleaseAllForUser.
type BulkReleaseResult struct {
	Operations int   // resource types processed
	Released   int64 // rows whose lock was cleared
}
