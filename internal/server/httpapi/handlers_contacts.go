package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"contactbook/internal/common"
	"contactbook/internal/server/repositories/contacts"
)

// Pagination bounds for GET /api/contacts/read_contacts.
const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func contactID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// handleCreateContact adds a contact to the authenticated user's book.
// A duplicate email within the book is a client error.
func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var payload ContactPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.contacts.Create(r.Context(), payload.toModel(user.ID))
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			respondError(w, http.StatusBadRequest, "Contact with this email already exists")
			return
		}
		s.logger.Error(r.Context(), "contact create failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, newContactResponse(created))
}

// handleReadContacts returns a page of the user's contacts. skip below zero
// is treated as zero; limit defaults to 10 and is capped at 100.
func (s *Server) handleReadContacts(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	skip := 0
	if v := r.URL.Query().Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "skip must be an integer")
			return
		}
		if n > 0 {
			skip = n
		}
	}

	limit := defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		if n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	page, err := s.contacts.List(r.Context(), user.ID, skip, limit)
	if err != nil {
		s.logger.Error(r.Context(), "contact list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, newContactList(page))
}

func (s *Server) handleReadContact(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	id, err := contactID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Contact not found")
		return
	}

	contact, err := s.contacts.Get(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(w, http.StatusNotFound, "Contact not found")
			return
		}
		s.logger.Error(r.Context(), "contact read failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, newContactResponse(contact))
}

// handleUpdateContact fully replaces the contact's fields.
func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	id, err := contactID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Contact not found")
		return
	}

	var payload ContactPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	contact := payload.toModel(user.ID)
	contact.ID = id

	updated, err := s.contacts.Update(r.Context(), contact)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(w, http.StatusNotFound, "Contact not found")
			return
		}
		s.logger.Error(r.Context(), "contact update failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, newContactResponse(updated))
}

// handleDeleteContact removes the contact and echoes the removed row.
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	id, err := contactID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Contact not found")
		return
	}

	deleted, err := s.contacts.Delete(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			respondError(w, http.StatusNotFound, "Contact not found")
			return
		}
		s.logger.Error(r.Context(), "contact delete failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, newContactResponse(deleted))
}

// handleSearchContacts matches the supplied filters as case-insensitive
// substrings, ANDed together.
func (s *Server) handleSearchContacts(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	q := r.URL.Query()
	filter := contacts.Filter{
		FirstName: q.Get("first_name"),
		LastName:  q.Get("last_name"),
		Email:     q.Get("email"),
	}

	found, err := s.contacts.Search(r.Context(), user.ID, filter)
	if err != nil {
		s.logger.Error(r.Context(), "contact search failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, newContactList(found))
}

// handleBirthdays lists contacts whose birthday comes up within the next
// seven days.
func (s *Server) handleBirthdays(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	upcoming, err := s.contacts.UpcomingBirthdays(r.Context(), user.ID)
	if err != nil {
		s.logger.Error(r.Context(), "birthday query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, newContactList(upcoming))
}
