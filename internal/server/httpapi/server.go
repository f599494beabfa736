// Package httpapi exposes the service over HTTP/JSON: a chi router with
// bearer-token auth, a redis-backed rate limiter on the listing endpoint,
// request logging and graceful shutdown.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"contactbook/internal/logging"
	"contactbook/internal/server/models"
	"contactbook/internal/server/repositories/contacts"
	"contactbook/internal/server/services"
)

// UserService is the account surface the handlers need.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ConfirmEmail(ctx context.Context, token string) (bool, error)
	RequestConfirmation(ctx context.Context, email string) (bool, error)
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID int64, contentType string, body io.Reader) (*models.User, error)
}

// ContactService is the contact surface the handlers need.
type ContactService interface {
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Get(ctx context.Context, id, ownerID int64) (*models.Contact, error)
	List(ctx context.Context, ownerID int64, skip, limit int) ([]*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Delete(ctx context.Context, id, ownerID int64) (*models.Contact, error)
	Search(ctx context.Context, ownerID int64, f contacts.Filter) ([]*models.Contact, error)
	UpcomingBirthdays(ctx context.Context, ownerID int64) ([]*models.Contact, error)
}

type Server struct {
	address  string
	logger   logging.Logger
	users    UserService
	contacts ContactService
	limiter  Limiter
}

func NewServer(address string, logger logging.Logger, users UserService, contacts ContactService, limiter Limiter) *Server {
	return &Server{
		address:  address,
		logger:   logger.With("module", "http_server"),
		users:    users,
		contacts: contacts,
		limiter:  limiter,
	}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, MessageResponse{Message: "Welcome to the contact book API"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Get("/refresh_token", s.handleRefreshToken)
			r.Get("/confirmed_email/{token}", s.handleConfirmEmail)
			r.Post("/request_email", s.handleRequestEmail)

			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Get("/me", s.handleMe)
				r.Patch("/avatar", s.handleUpdateAvatar)
			})
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/create", s.handleCreateContact)
			r.Get("/read_contact/{id}", s.handleReadContact)
			r.Put("/update_contact/{id}", s.handleUpdateContact)
			r.Delete("/delete_contact/{id}", s.handleDeleteContact)
			r.Get("/search", s.handleSearchContacts)
			r.Get("/birthdays", s.handleBirthdays)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit)
				r.Get("/read_contacts", s.handleReadContacts)
			})
		})
	})

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "error during shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
