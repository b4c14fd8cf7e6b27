package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/datastore/entities"
)

// UserRepository reads and writes portal users.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user, assigning an ID when empty.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.Name == "" {
		return validationError("user name must not be empty", "name", "")
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return dbError(err, "create_user", "", "email", user.Email)
	}
	return nil
}

// GetByID returns a user or ErrUserNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound, "get_user")
	}
	return &user, nil
}

// List returns all users ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]entities.User, error) {
	var users []entities.User
	if err := r.db.WithContext(ctx).Order("name").Find(&users).Error; err != nil {
		return nil, dbError(err, "list_users", "")
	}
	return users, nil
}

// SetTokenHash replaces the stored API token hash.
func (r *UserRepository) SetTokenHash(ctx context.Context, id, hash string) error {
	result := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Update("api_token_hash", hash)
	if result.Error != nil {
		return dbError(result.Error, "set_token_hash", "")
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, ErrUserNotFound, "set_token_hash")
	}
	return nil
}
