package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook/internal/common"
	"contactbook/internal/logging"
	"contactbook/internal/server/models"
	"contactbook/internal/server/repositories/contacts"
	"contactbook/internal/server/services"
)

// --- fakes ---

type fakeUserService struct {
	registerOut *models.User
	registerErr error

	loginOut *services.TokenPair
	loginErr error

	refreshOut *services.TokenPair
	refreshErr error

	confirmAlready bool
	confirmErr     error

	requestAlready bool
	requestErr     error

	currentOut *models.User
	currentErr error

	avatarOut         *models.User
	avatarErr         error
	avatarContentType string
}

func (f *fakeUserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerOut, nil
}

func (f *fakeUserService) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginOut, nil
}

func (f *fakeUserService) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshOut, nil
}

func (f *fakeUserService) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	return f.confirmAlready, f.confirmErr
}

func (f *fakeUserService) RequestConfirmation(ctx context.Context, email string) (bool, error) {
	return f.requestAlready, f.requestErr
}

func (f *fakeUserService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.currentOut, nil
}

func (f *fakeUserService) UpdateAvatar(ctx context.Context, userID int64, contentType string, body io.Reader) (*models.User, error) {
	f.avatarContentType = contentType
	if f.avatarErr != nil {
		return nil, f.avatarErr
	}
	return f.avatarOut, nil
}

type fakeContactService struct {
	createOut *models.Contact
	createErr error

	getOut *models.Contact
	getErr error

	listOut  []*models.Contact
	listErr  error
	listSkip int
	listLim  int

	updateOut *models.Contact
	updateErr error

	deleteOut *models.Contact
	deleteErr error

	searchOut    []*models.Contact
	searchErr    error
	searchFilter contacts.Filter

	birthdaysOut []*models.Contact
	birthdaysErr error
}

func (f *fakeContactService) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeContactService) Get(ctx context.Context, id, ownerID int64) (*models.Contact, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeContactService) List(ctx context.Context, ownerID int64, skip, limit int) ([]*models.Contact, error) {
	f.listSkip, f.listLim = skip, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listOut, nil
}

func (f *fakeContactService) Update(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updateOut, nil
}

func (f *fakeContactService) Delete(ctx context.Context, id, ownerID int64) (*models.Contact, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return f.deleteOut, nil
}

func (f *fakeContactService) Search(ctx context.Context, ownerID int64, flt contacts.Filter) ([]*models.Contact, error) {
	f.searchFilter = flt
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchOut, nil
}

func (f *fakeContactService) UpcomingBirthdays(ctx context.Context, ownerID int64) ([]*models.Contact, error) {
	if f.birthdaysErr != nil {
		return nil, f.birthdaysErr
	}
	return f.birthdaysOut, nil
}

type fakeLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	lastKey    string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	f.lastKey = key
	return f.allowed, f.retryAfter, f.err
}

// --- helpers ---

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServer(users UserService, cs ContactService, limiter Limiter) http.Handler {
	return NewServer("localhost:0", testLogger(), users, cs, limiter).Handler()
}

func authedUserService(f *fakeUserService) *fakeUserService {
	if f == nil {
		f = &fakeUserService{}
	}
	if f.currentOut == nil {
		f.currentOut = &models.User{ID: 1, Username: "ann", Email: "ann@example.com"}
	}
	return f
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func testContact() *models.Contact {
	return &models.Contact{
		ID:          3,
		FirstName:   "Ann",
		LastName:    "Lee",
		Email:       "ann.lee@example.com",
		PhoneNumber: "+123456789",
		BirthDate:   time.Date(1990, time.June, 5, 0, 0, 0, 0, time.UTC),
		OwnerID:     1,
	}
}

func contactBody() map[string]any {
	return map[string]any{
		"first_name":   "Ann",
		"last_name":    "Lee",
		"email":        "ann.lee@example.com",
		"phone_number": "+123456789",
		"birth_date":   "1990-06-05",
	}
}

// --- auth endpoint tests ---

func TestSignupEndpoint_Created(t *testing.T) {
	us := &fakeUserService{registerOut: &models.User{
		ID: 1, Username: "ann", Email: "ann@example.com", Avatar: "http://g/av",
	}}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "ann", "email": "ann@example.com", "password": "s3cret",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[SignupResponse](t, rec)
	assert.Equal(t, "User successfully created", body.Detail)
	assert.Equal(t, int64(1), body.User.ID)
	assert.Equal(t, "ann@example.com", body.User.Email)
}

func TestSignupEndpoint_Conflict(t *testing.T) {
	us := &fakeUserService{registerErr: common.ErrorAlreadyExists}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "ann", "email": "ann@example.com", "password": "s3cret",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Account already exists", decodeBody[ErrorResponse](t, rec).Detail)
}

func TestSignupEndpoint_InvalidBody(t *testing.T) {
	h := newTestServer(&fakeUserService{}, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "", "email": "nope", "password": "",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint_Success(t *testing.T) {
	us := &fakeUserService{loginOut: &services.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "s3cret",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[TokenResponse](t, rec)
	assert.Equal(t, "a", body.AccessToken)
	assert.Equal(t, "r", body.RefreshToken)
	assert.Equal(t, "bearer", body.TokenType)
}

func TestLoginEndpoint_NotConfirmed(t *testing.T) {
	us := &fakeUserService{loginErr: common.ErrorEmailNotConfirmed}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "s3cret",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Email not confirmed", decodeBody[ErrorResponse](t, rec).Detail)
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	us := &fakeUserService{loginErr: common.ErrorUnauthorized}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint_Success(t *testing.T) {
	us := &fakeUserService{refreshOut: &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/auth/refresh_token", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r2", decodeBody[TokenResponse](t, rec).RefreshToken)
}

func TestRefreshEndpoint_Invalid(t *testing.T) {
	us := &fakeUserService{refreshErr: common.ErrorUnauthorized}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/auth/refresh_token", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", decodeBody[ErrorResponse](t, rec).Detail)
}

func TestRefreshEndpoint_NoToken(t *testing.T) {
	h := newTestServer(&fakeUserService{}, &fakeContactService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh_token", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmEmailEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		already     bool
		err         error
		wantStatus  int
		wantMessage string
	}{
		{name: "confirmed", wantStatus: http.StatusOK, wantMessage: "Email confirmed"},
		{name: "already confirmed", already: true, wantStatus: http.StatusOK, wantMessage: "Your email is already confirmed"},
		{name: "bad token", err: common.ErrInvalidToken, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := &fakeUserService{confirmAlready: tt.already, confirmErr: tt.err}
			h := newTestServer(us, &fakeContactService{}, nil)

			rec := doJSON(t, h, http.MethodGet, "/api/auth/confirmed_email/some-token", nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, decodeBody[MessageResponse](t, rec).Message)
			}
		})
	}
}

func TestRequestEmailEndpoint_NeverRevealsAccounts(t *testing.T) {
	us := &fakeUserService{}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/request_email", map[string]string{
		"email": "nobody@example.com",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Check your email for confirmation.", decodeBody[MessageResponse](t, rec).Message)
}

func TestMeEndpoint(t *testing.T) {
	us := authedUserService(nil)
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/auth/me", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann@example.com", decodeBody[UserResponse](t, rec).Email)
}

func TestMeEndpoint_Unauthenticated(t *testing.T) {
	us := &fakeUserService{currentErr: common.ErrorUnauthorized}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/auth/me", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func multipartAvatar(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="avatar.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestAvatarEndpoint_Success(t *testing.T) {
	us := authedUserService(&fakeUserService{
		avatarOut: &models.User{ID: 1, Email: "ann@example.com", Avatar: "http://s3/avatars/x"},
	})
	h := newTestServer(us, &fakeContactService{}, nil)

	body, contentType := multipartAvatar(t)
	req := httptest.NewRequest(http.MethodPatch, "/api/auth/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://s3/avatars/x", decodeBody[UserResponse](t, rec).Avatar)
	assert.Equal(t, "image/png", us.avatarContentType)
}

func TestAvatarEndpoint_StoreDown(t *testing.T) {
	us := authedUserService(&fakeUserService{avatarErr: common.ErrorUnavailable})
	h := newTestServer(us, &fakeContactService{}, nil)

	body, contentType := multipartAvatar(t)
	req := httptest.NewRequest(http.MethodPatch, "/api/auth/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAvatarEndpoint_MissingFile(t *testing.T) {
	us := authedUserService(nil)
	h := newTestServer(us, &fakeContactService{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/auth/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- contact endpoint tests ---

func TestCreateContactEndpoint_Created(t *testing.T) {
	cs := &fakeContactService{createOut: testContact()}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/contacts/create", contactBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[ContactResponse](t, rec)
	assert.Equal(t, int64(3), body.ID)
	assert.Equal(t, int64(1), body.OwnerID)
	assert.JSONEq(t, `"1990-06-05"`, string(mustMarshal(t, body.BirthDate)))
}

func TestCreateContactEndpoint_DuplicateEmail(t *testing.T) {
	cs := &fakeContactService{createErr: common.ErrorAlreadyExists}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/contacts/create", contactBody())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Contact with this email already exists", decodeBody[ErrorResponse](t, rec).Detail)
}

func TestCreateContactEndpoint_RequiresAuth(t *testing.T) {
	us := &fakeUserService{currentErr: common.ErrorUnauthorized}
	h := newTestServer(us, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/contacts/create", contactBody())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReadContactsEndpoint_Defaults(t *testing.T) {
	cs := &fakeContactService{listOut: []*models.Contact{testContact()}}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/read_contacts", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, cs.listSkip)
	assert.Equal(t, defaultPageLimit, cs.listLim)
	assert.Len(t, decodeBody[[]ContactResponse](t, rec), 1)
}

func TestReadContactsEndpoint_Bounds(t *testing.T) {
	cs := &fakeContactService{}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/read_contacts?skip=-5&limit=500", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, cs.listSkip)
	assert.Equal(t, maxPageLimit, cs.listLim)
}

func TestReadContactsEndpoint_BadQuery(t *testing.T) {
	h := newTestServer(authedUserService(nil), &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/read_contacts?limit=abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadContactEndpoint_NotFound(t *testing.T) {
	cs := &fakeContactService{getErr: common.ErrorNotFound}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/read_contact/42", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Contact not found", decodeBody[ErrorResponse](t, rec).Detail)
}

func TestUpdateContactEndpoint_Success(t *testing.T) {
	cs := &fakeContactService{updateOut: testContact()}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodPut, "/api/contacts/update_contact/3", contactBody())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decodeBody[ContactResponse](t, rec).ID)
}

func TestUpdateContactEndpoint_NotFound(t *testing.T) {
	cs := &fakeContactService{updateErr: common.ErrorNotFound}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodPut, "/api/contacts/update_contact/42", contactBody())

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteContactEndpoint_ReturnsRemoved(t *testing.T) {
	cs := &fakeContactService{deleteOut: testContact()}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodDelete, "/api/contacts/delete_contact/3", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann.lee@example.com", decodeBody[ContactResponse](t, rec).Email)
}

func TestSearchContactsEndpoint_PassesFilter(t *testing.T) {
	cs := &fakeContactService{searchOut: []*models.Contact{testContact()}}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/search?first_name=Ann&email=lee", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contacts.Filter{FirstName: "Ann", Email: "lee"}, cs.searchFilter)
}

func TestBirthdaysEndpoint(t *testing.T) {
	cs := &fakeContactService{birthdaysOut: []*models.Contact{testContact()}}
	h := newTestServer(authedUserService(nil), cs, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/birthdays", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ContactResponse](t, rec), 1)
}

// --- rate limiting ---

func TestReadContactsEndpoint_RateLimited(t *testing.T) {
	limiter := &fakeLimiter{allowed: false, retryAfter: 42 * time.Second}
	h := newTestServer(authedUserService(nil), &fakeContactService{}, limiter)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/read_contacts", nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Equal(t, "ratelimit:contacts:1", limiter.lastKey)
}

func TestReadContactsEndpoint_LimiterFailureIsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: context.DeadlineExceeded}
	cs := &fakeContactService{}
	h := newTestServer(authedUserService(nil), cs, limiter)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/read_contacts", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadContactsEndpoint_AllowedUnderLimit(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	h := newTestServer(authedUserService(nil), &fakeContactService{}, limiter)

	rec := doJSON(t, h, http.MethodGet, "/api/contacts/read_contacts", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- misc routes ---

func TestWelcomeAndHealth(t *testing.T) {
	h := newTestServer(&fakeUserService{}, &fakeContactService{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Welcome"))

	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
