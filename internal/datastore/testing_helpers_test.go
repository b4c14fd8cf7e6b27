package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/conf"
	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/lock"
)

// setupTestDB opens a migrated SQLite database in a temp directory. A file is
// used instead of :memory: so concurrent tests get real connection pooling.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	settings := &conf.Settings{
		Database: conf.DatabaseSettings{
			Type:   conf.DatabaseSQLite,
			SQLite: conf.SQLiteSettings{Path: filepath.Join(t.TempDir(), "quotedesk.db")},
		},
	}

	store, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	return store.Gorm()
}

type seed struct {
	alice, bob *entities.User
	article    *entities.Article
	block      *entities.Block
	quote      *entities.QuoteVersion
	deal       *entities.SalesOpportunity
}

func seedData(t *testing.T, db *gorm.DB) *seed {
	t.Helper()
	ctx := context.Background()

	users := NewUserRepository(db)
	repo := NewEntityRepository(db)

	s := &seed{
		alice:   &entities.User{Name: "Alice", Email: "alice@example.com"},
		bob:     &entities.User{Name: "Bob", Email: "bob@example.com"},
		article: &entities.Article{Number: "A-100", Title: "Steel beam", Unit: "m", Price: 42.5},
		block:   &entities.Block{Name: "Intro", Content: "Dear customer"},
		quote:   &entities.QuoteVersion{Title: "Warehouse v1"},
		deal:    &entities.SalesOpportunity{Title: "Warehouse", Customer: "ACME", Amount: 125000},
	}
	require.NoError(t, users.Create(ctx, s.alice))
	require.NoError(t, users.Create(ctx, s.bob))
	require.NoError(t, repo.CreateArticle(ctx, s.article))
	require.NoError(t, repo.CreateBlock(ctx, s.block))
	require.NoError(t, repo.CreateQuoteVersion(ctx, s.quote))
	require.NoError(t, repo.CreateSalesOpportunity(ctx, s.deal))
	return s
}

func newTestLockStore(t *testing.T, db *gorm.DB) *LockStore {
	t.Helper()
	store, err := NewLockStore(db, lock.DefaultUserDirectory)
	require.NoError(t, err)
	return store
}

func ptr[T any](v T) *T { return &v }

var lockTime = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
