package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"contactbook/internal/common"
	"contactbook/internal/server/models"
	"contactbook/internal/server/repositories/contacts"
	"contactbook/internal/server/repositories/repomanager"
)

// birthdayWindowDays is the forward-looking window for upcoming birthdays:
// [today, today+7), evaluated on month/day only.
const birthdayWindowDays = 7

// ContactService provides the owner-scoped contact operations. Every call
// takes the owner's user id and never returns another user's rows.
type ContactService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewContactService(db *sql.DB, m repomanager.RepositoryManager) *ContactService {
	return &ContactService{db: db, repomanager: m}
}

// Create inserts a contact for the owner. An email the owner already has
// yields common.ErrorAlreadyExists. The pre-check gives the clean error;
// the unique index covers the race.
func (s *ContactService) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	repo := s.repomanager.Contacts(s.db)

	exists, err := repo.ExistsEmail(ctx, contact.OwnerID, contact.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking contact email: %w", err)
	}
	if exists {
		return nil, common.ErrorAlreadyExists
	}

	return repo.Create(ctx, contact)
}

// Get returns the contact if it exists and belongs to ownerID.
func (s *ContactService) Get(ctx context.Context, id, ownerID int64) (*models.Contact, error) {
	return s.repomanager.Contacts(s.db).Get(ctx, id, ownerID)
}

// List returns a page of the owner's contacts in insertion order.
func (s *ContactService) List(ctx context.Context, ownerID int64, skip, limit int) ([]*models.Contact, error) {
	return s.repomanager.Contacts(s.db).List(ctx, ownerID, skip, limit)
}

// Update fully replaces the contact's mutable fields.
func (s *ContactService) Update(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	return s.repomanager.Contacts(s.db).Update(ctx, contact)
}

// Delete removes the contact and returns the removed row.
func (s *ContactService) Delete(ctx context.Context, id, ownerID int64) (*models.Contact, error) {
	return s.repomanager.Contacts(s.db).Delete(ctx, id, ownerID)
}

// Search applies the optional filters, ANDed, always owner-scoped.
func (s *ContactService) Search(ctx context.Context, ownerID int64, f contacts.Filter) ([]*models.Contact, error) {
	return s.repomanager.Contacts(s.db).Search(ctx, ownerID, f)
}

// UpcomingBirthdays returns the owner's contacts whose birthday falls within
// the next seven days of the current date.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, ownerID int64) ([]*models.Contact, error) {
	return s.UpcomingBirthdaysOn(ctx, ownerID, time.Now())
}

// UpcomingBirthdaysOn is UpcomingBirthdays with an explicit "today",
// which keeps the window logic testable. Results are ordered by contact id.
func (s *ContactService) UpcomingBirthdaysOn(ctx context.Context, ownerID int64, today time.Time) ([]*models.Contact, error) {
	all, err := s.repomanager.Contacts(s.db).ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var result []*models.Contact
	for _, c := range all {
		if inBirthdayWindow(c.BirthDate, today) {
			result = append(result, c)
		}
	}
	return result, nil
}

// inBirthdayWindow reports whether the birthday's month/day falls within
// [today, today+7). The birth year is ignored. Two probe dates are built,
// one in today's year and one in the next; for any birthday exactly one of
// them can land in the window, which handles the Dec→Jan wraparound without
// month-rollover branching.
func inBirthdayWindow(birthDate, today time.Time) bool {
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	for _, year := range []int{todayDate.Year(), todayDate.Year() + 1} {
		probe := birthdayProbe(birthDate, year)
		days := int(probe.Sub(todayDate) / (24 * time.Hour))
		if days >= 0 && days < birthdayWindowDays {
			return true
		}
	}
	return false
}

// birthdayProbe places the birthday's month/day into the given year.
// A Feb 29 birthday normalizes to Feb 28 in non-leap years, so leap-day
// contacts still get their yearly window.
func birthdayProbe(birthDate time.Time, year int) time.Time {
	month, day := birthDate.Month(), birthDate.Day()
	if month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
