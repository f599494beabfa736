package contacts

import (
	"context"

	"contactbook/internal/server/models"
)

// Filter holds the optional search criteria. Empty fields are not applied.
type Filter struct {
	FirstName string
	LastName  string
	Email     string
}

// Repository is the owner-scoped contact store. Every read and write is
// restricted to rows whose owner_id matches the given owner; a contact that
// belongs to someone else is reported as absent, never as forbidden.
type Repository interface {
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Get(ctx context.Context, id, ownerID int64) (*models.Contact, error)
	List(ctx context.Context, ownerID int64, skip, limit int) ([]*models.Contact, error)
	ListAll(ctx context.Context, ownerID int64) ([]*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Delete(ctx context.Context, id, ownerID int64) (*models.Contact, error)
	Search(ctx context.Context, ownerID int64, f Filter) ([]*models.Contact, error)
	ExistsEmail(ctx context.Context, ownerID int64, email string) (bool, error)
}
