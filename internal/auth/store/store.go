package store

import (
	"context"

	"github.com/google/uuid"

	"sayarat/internal/auth/models"
	dErrors "sayarat/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific not found errors consistent across
// implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}
