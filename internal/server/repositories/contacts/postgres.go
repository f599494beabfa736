// Package contacts provides the PostgreSQL-backed, owner-scoped repository
// for contact rows.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"contactbook/internal/common"
	"contactbook/internal/dbx"
	"contactbook/internal/server/models"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresRepository implements contact storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const contactColumns = `id, first_name, last_name, email, phone_number, birth_date, additional_info, owner_id`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	c := &models.Contact{}
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email,
		&c.PhoneNumber, &c.BirthDate, &c.AdditionalInfo, &c.OwnerID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new contact owned by contact.OwnerID. A duplicate email
// for the same owner yields common.ErrorAlreadyExists (unique index on
// (owner_id, lower(email))).
func (r *PostgresRepository) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (first_name, last_name, email, phone_number, birth_date, additional_info, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		contact.FirstName, contact.LastName, contact.Email, contact.PhoneNumber,
		contact.BirthDate, contact.AdditionalInfo, contact.OwnerID).Scan(&contact.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return contact, nil
}

// Get returns the contact only if it exists and belongs to ownerID.
// Foreign and absent contacts are both common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id, ownerID int64) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 AND owner_id = $2`

	c, err := scanContact(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// List returns a page of the owner's contacts in insertion order.
func (r *PostgresRepository) List(ctx context.Context, ownerID int64, skip, limit int) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = $1 ORDER BY id OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, ownerID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectContacts(rows)
}

// ListAll returns all of the owner's contacts ordered by id.
func (r *PostgresRepository) ListAll(ctx context.Context, ownerID int64) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectContacts(rows)
}

// Update fully replaces the mutable fields of the contact identified by
// (contact.ID, contact.OwnerID). A foreign or absent contact is
// common.ErrorNotFound and no row is touched.
func (r *PostgresRepository) Update(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	query := `
		UPDATE contacts
		SET first_name = $3, last_name = $4, email = $5, phone_number = $6, birth_date = $7, additional_info = $8
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + contactColumns

	c, err := scanContact(r.db.QueryRowContext(ctx, query,
		contact.ID, contact.OwnerID, contact.FirstName, contact.LastName,
		contact.Email, contact.PhoneNumber, contact.BirthDate, contact.AdditionalInfo))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Delete removes the contact if owned by ownerID and returns the removed
// row; otherwise common.ErrorNotFound and nothing is deleted.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID int64) (*models.Contact, error) {
	query := `DELETE FROM contacts WHERE id = $1 AND owner_id = $2 RETURNING ` + contactColumns

	c, err := scanContact(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Search applies the supplied filters as case-insensitive substring matches,
// ANDed together and always scoped to the owner. Empty filters do not
// restrict results.
func (r *PostgresRepository) Search(ctx context.Context, ownerID int64, f Filter) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = $1`
	args := []any{ownerID}

	if f.FirstName != "" {
		args = append(args, "%"+f.FirstName+"%")
		query += fmt.Sprintf(" AND first_name ILIKE $%d", len(args))
	}
	if f.LastName != "" {
		args = append(args, "%"+f.LastName+"%")
		query += fmt.Sprintf(" AND last_name ILIKE $%d", len(args))
	}
	if f.Email != "" {
		args = append(args, "%"+f.Email+"%")
		query += fmt.Sprintf(" AND email ILIKE $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectContacts(rows)
}

// ExistsEmail reports whether the owner already has a contact with the given
// email. Used by the route layer for the friendlier duplicate response; the
// unique index remains the authority.
func (r *PostgresRepository) ExistsEmail(ctx context.Context, ownerID int64, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM contacts WHERE owner_id = $1 AND lower(email) = lower($2))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func collectContacts(rows *sql.Rows) ([]*models.Contact, error) {
	defer rows.Close()

	var result []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
