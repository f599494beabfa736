package repomanager

import (
	"context"
	"database/sql"

	"contactbook/internal/dbx"
	"contactbook/internal/server/repositories/contacts"
	"contactbook/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Contacts(db dbx.DBTX) contacts.Repository
}
