package services

import (
	"context"
	"sync"
	"time"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/repositories"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	CreateFunc        func(ctx context.Context, user *models.User, verification models.IssuedOTP) (*models.User, error)
	GetByIDFunc       func(ctx context.Context, id int64) (*models.User, error)
	GetByPublicIDFunc func(ctx context.Context, publicID string) (*models.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	EmailTakenFunc    func(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateProfileFunc func(ctx context.Context, id int64, name *string, image *models.StoredObject) (*models.User, *string, error)
	DeleteFunc        func(ctx context.Context, id int64) error
	IssueOTPFunc      func(ctx context.Context, userID int64, purpose models.OTPPurpose, code models.IssuedOTP, pendingEmail *string, now time.Time) (bool, error)
	ConsumeOTPFunc    func(ctx context.Context, userID int64, purpose models.OTPPurpose, check repositories.OTPCheck, effect repositories.OTPEffect) (models.OTPVerdict, error)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User, verification models.IssuedOTP) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user, verification)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	if m.GetByPublicIDFunc != nil {
		return m.GetByPublicIDFunc(ctx, publicID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	if m.EmailTakenFunc != nil {
		return m.EmailTakenFunc(ctx, email, excludeID)
	}
	return false, nil
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id int64, name *string, image *models.StoredObject) (*models.User, *string, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, name, image)
	}
	return nil, nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) IssueOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, code models.IssuedOTP, pendingEmail *string, now time.Time) (bool, error) {
	if m.IssueOTPFunc != nil {
		return m.IssueOTPFunc(ctx, userID, purpose, code, pendingEmail, now)
	}
	return true, nil
}

func (m *MockUserRepository) ConsumeOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, check repositories.OTPCheck, effect repositories.OTPEffect) (models.OTPVerdict, error) {
	if m.ConsumeOTPFunc != nil {
		return m.ConsumeOTPFunc(ctx, userID, purpose, check, effect)
	}
	return models.OTPNoneIssued, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc            func(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByTokenHashFunc    func(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByTokenHashFunc func(ctx context.Context, tokenHash string) error
	DeleteByUserFunc      func(ctx context.Context, userID int64) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, s)
	}
	created := *s
	created.ID = 1
	created.CreatedAt = time.Now()
	return &created, nil
}

func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if m.DeleteByTokenHashFunc != nil {
		return m.DeleteByTokenHashFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockSessionRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	if m.DeleteByUserFunc != nil {
		return m.DeleteByUserFunc(ctx, userID)
	}
	return 0, nil
}

// MockFileRepository implements FileRepository for testing
type MockFileRepository struct {
	ResolveParentFunc   func(ctx context.Context, publicID string, userID int64) (int64, error)
	CreateFunc          func(ctx context.Context, file *models.File) (*models.File, error)
	GetLiveFunc         func(ctx context.Context, publicID string, userID int64) (*models.File, error)
	ListLiveFunc        func(ctx context.Context, folderID *int64, userID int64) ([]*models.File, error)
	SoftDeleteFunc      func(ctx context.Context, publicID string, userID int64, at time.Time) error
	ObjectIDsByUserFunc func(ctx context.Context, userID int64) ([]string, error)
}

func (m *MockFileRepository) ResolveParent(ctx context.Context, publicID string, userID int64) (int64, error) {
	if m.ResolveParentFunc != nil {
		return m.ResolveParentFunc(ctx, publicID, userID)
	}
	return 0, models.ErrNotFound
}

func (m *MockFileRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, file)
	}
	created := *file
	created.PublicID = "00000000-0000-0000-0000-000000000001"
	created.UploadedAt = time.Now()
	return &created, nil
}

func (m *MockFileRepository) GetLive(ctx context.Context, publicID string, userID int64) (*models.File, error) {
	if m.GetLiveFunc != nil {
		return m.GetLiveFunc(ctx, publicID, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockFileRepository) ListLive(ctx context.Context, folderID *int64, userID int64) ([]*models.File, error) {
	if m.ListLiveFunc != nil {
		return m.ListLiveFunc(ctx, folderID, userID)
	}
	return []*models.File{}, nil
}

func (m *MockFileRepository) SoftDelete(ctx context.Context, publicID string, userID int64, at time.Time) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, publicID, userID, at)
	}
	return models.ErrNotFound
}

func (m *MockFileRepository) ObjectIDsByUser(ctx context.Context, userID int64) ([]string, error) {
	if m.ObjectIDsByUserFunc != nil {
		return m.ObjectIDsByUserFunc(ctx, userID)
	}
	return []string{}, nil
}

// CapturingNotifier records every message handed to it.
type CapturingNotifier struct {
	mu       sync.Mutex
	Messages []EmailMessage
}

func (n *CapturingNotifier) Notify(ctx context.Context, msg EmailMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, msg)
}

// Last returns the most recent message, or false when none was sent.
func (n *CapturingNotifier) Last() (EmailMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Messages) == 0 {
		return EmailMessage{}, false
	}
	return n.Messages[len(n.Messages)-1], true
}

func (n *CapturingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages)
}

// NewTestUser creates a verified user for testing
func NewTestUser(id int64, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:            id,
		PublicID:      "11111111-2222-3333-4444-555555555555",
		Name:          name,
		Email:         email,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
