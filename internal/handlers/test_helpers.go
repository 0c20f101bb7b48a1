package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext attaches an authenticated session to the request, as
// RequireSession would.
func WithSessionContext(req *http.Request, userID int64, publicID string) *http.Request {
	ctx := auth.WithUser(req.Context(), &models.SessionUser{
		UserID:    userID,
		PublicID:  publicID,
		SessionID: 1,
	})
	return req.WithContext(ctx)
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc           func(ctx context.Context, name, email, password string, meta services.RequestMeta) (*models.User, error)
	VerifyEmailFunc        func(ctx context.Context, email, code string) error
	ResendVerificationFunc func(ctx context.Context, email string) error
	ForgotPasswordFunc     func(ctx context.Context, email string) error
	ResetPasswordFunc      func(ctx context.Context, email, code, newPassword string) error
	LoginFunc              func(ctx context.Context, email, password string, meta services.RequestMeta) (*services.LoginResult, error)
	LogoutFunc             func(ctx context.Context, token, userPublicID string) error
	CurrentUserFunc        func(ctx context.Context, userID int64) (*models.User, error)
}

func (m *MockAuthService) Register(ctx context.Context, name, email, password string, meta services.RequestMeta) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, name, email, password, meta)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, email, code string) error {
	if m.VerifyEmailFunc == nil {
		return models.ErrOTPMismatch
	}
	return m.VerifyEmailFunc(ctx, email, code)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc == nil {
		return nil
	}
	return m.ResendVerificationFunc(ctx, email)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrOTPMismatch
	}
	return m.ResetPasswordFunc(ctx, email, code, newPassword)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, token, userPublicID string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token, userPublicID)
}

func (m *MockAuthService) CurrentUser(ctx context.Context, userID int64) (*models.User, error) {
	if m.CurrentUserFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.CurrentUserFunc(ctx, userID)
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	GetProfileFunc         func(ctx context.Context, userID int64) (*models.User, error)
	PublicProfileFunc      func(ctx context.Context, publicID string) (models.PublicProfile, error)
	UpdateProfileFunc      func(ctx context.Context, userID int64, upd services.ProfileUpdate) (*models.User, error)
	RequestEmailChangeFunc func(ctx context.Context, userID int64, newEmail, currentPassword string) error
	ResendEmailChangeFunc  func(ctx context.Context, userID int64) error
	VerifyEmailChangeFunc  func(ctx context.Context, userID int64, code string) error
	DeleteAccountFunc      func(ctx context.Context, userID int64) error
}

func (m *MockAccountService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetProfileFunc(ctx, userID)
}

func (m *MockAccountService) PublicProfile(ctx context.Context, publicID string) (models.PublicProfile, error) {
	if m.PublicProfileFunc == nil {
		return models.PublicProfile{}, models.ErrNotFound
	}
	return m.PublicProfileFunc(ctx, publicID)
}

func (m *MockAccountService) UpdateProfile(ctx context.Context, userID int64, upd services.ProfileUpdate) (*models.User, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateProfileFunc(ctx, userID, upd)
}

func (m *MockAccountService) RequestEmailChange(ctx context.Context, userID int64, newEmail, currentPassword string) error {
	if m.RequestEmailChangeFunc == nil {
		return nil
	}
	return m.RequestEmailChangeFunc(ctx, userID, newEmail, currentPassword)
}

func (m *MockAccountService) ResendEmailChange(ctx context.Context, userID int64) error {
	if m.ResendEmailChangeFunc == nil {
		return nil
	}
	return m.ResendEmailChangeFunc(ctx, userID)
}

func (m *MockAccountService) VerifyEmailChange(ctx context.Context, userID int64, code string) error {
	if m.VerifyEmailChangeFunc == nil {
		return models.ErrNoPendingEmailChange
	}
	return m.VerifyEmailChangeFunc(ctx, userID, code)
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, userID int64) error {
	if m.DeleteAccountFunc == nil {
		return nil
	}
	return m.DeleteAccountFunc(ctx, userID)
}

// MockFolderService implements FolderServiceInterface for testing
type MockFolderService struct {
	CreateFunc   func(ctx context.Context, userID int64, name string, parentPublicID *string) (*models.Folder, error)
	GetFunc      func(ctx context.Context, userID int64, publicID string) (*models.FolderContents, error)
	ListRootFunc func(ctx context.Context, userID int64) (*services.FolderListing, error)
	TrashFunc    func(ctx context.Context, userID int64, userPublicID, publicID string) error
}

func (m *MockFolderService) Create(ctx context.Context, userID int64, name string, parentPublicID *string) (*models.Folder, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.CreateFunc(ctx, userID, name, parentPublicID)
}

func (m *MockFolderService) Get(ctx context.Context, userID int64, publicID string) (*models.FolderContents, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, userID, publicID)
}

func (m *MockFolderService) ListRoot(ctx context.Context, userID int64) (*services.FolderListing, error) {
	if m.ListRootFunc == nil {
		return &services.FolderListing{}, nil
	}
	return m.ListRootFunc(ctx, userID)
}

func (m *MockFolderService) Trash(ctx context.Context, userID int64, userPublicID, publicID string) error {
	if m.TrashFunc == nil {
		return models.ErrNotFound
	}
	return m.TrashFunc(ctx, userID, userPublicID, publicID)
}

// MockFileService implements FileServiceInterface for testing
type MockFileService struct {
	UploadFunc func(ctx context.Context, userID int64, userPublicID string, parentPublicID *string, inputs []services.UploadInput) (*models.UploadResult, error)
	GetFunc    func(ctx context.Context, userID int64, publicID string) (*models.File, error)
	OpenFunc   func(ctx context.Context, userID int64, publicID string) (*models.File, io.ReadCloser, error)
	DeleteFunc func(ctx context.Context, userID int64, publicID string) error
}

func (m *MockFileService) Upload(ctx context.Context, userID int64, userPublicID string, parentPublicID *string, inputs []services.UploadInput) (*models.UploadResult, error) {
	if m.UploadFunc == nil {
		return nil, services.ErrNoFiles
	}
	return m.UploadFunc(ctx, userID, userPublicID, parentPublicID, inputs)
}

func (m *MockFileService) Get(ctx context.Context, userID int64, publicID string) (*models.File, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, userID, publicID)
}

func (m *MockFileService) Open(ctx context.Context, userID int64, publicID string) (*models.File, io.ReadCloser, error) {
	if m.OpenFunc == nil {
		return nil, nil, models.ErrNotFound
	}
	return m.OpenFunc(ctx, userID, publicID)
}

func (m *MockFileService) Delete(ctx context.Context, userID int64, publicID string) error {
	if m.DeleteFunc == nil {
		return models.ErrNotFound
	}
	return m.DeleteFunc(ctx, userID, publicID)
}
