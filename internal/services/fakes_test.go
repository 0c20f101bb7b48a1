package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/repositories"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/storage"
	pkgauth "github.com/lalithsaicharan00/cloud-storage-api/pkg/auth"
)

var testHasher = pkgauth.NewHasher(4)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memoryUsers is a UserRepository with the same slot semantics as the
// Postgres repository: conditional issue and check-then-apply consume
// under one lock.
type memoryUsers struct {
	mu              sync.Mutex
	nextID          int64
	byID            map[int64]*models.User
	slots           map[int64]map[models.OTPPurpose]models.OTPSlot
	revokedSessions map[int64]int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:            map[int64]*models.User{},
		slots:           map[int64]map[models.OTPPurpose]models.OTPSlot{},
		revokedSessions: map[int64]int{},
	}
}

func (m *memoryUsers) emailOwner(email string) *models.User {
	for _, u := range m.byID {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memoryUsers) Create(ctx context.Context, user *models.User, verification models.IssuedOTP) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailOwner(user.Email) != nil {
		return nil, models.ErrConflict
	}
	m.nextID++
	created := *user
	created.ID = m.nextID
	created.PublicID = uuid.NewString()
	m.byID[created.ID] = &created

	hash := verification.Hash
	exp := verification.ExpiresAt
	m.slots[created.ID] = map[models.OTPPurpose]models.OTPSlot{
		models.OTPVerification: {CodeHash: &hash, ExpiresAt: &exp},
	}
	out := created
	return &out, nil
}

func (m *memoryUsers) get(id int64) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *memoryUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memoryUsers) GetByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if u.PublicID == publicID {
			return m.get(id)
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.emailOwner(email); u != nil {
		return m.get(u.ID)
	}
	return nil, models.ErrNotFound
}

func (m *memoryUsers) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.emailOwner(email)
	return u != nil && u.ID != excludeID, nil
}

func (m *memoryUsers) UpdateProfile(ctx context.Context, id int64, name *string, image *models.StoredObject) (*models.User, *string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil, models.ErrNotFound
	}
	var replaced *string
	if name != nil {
		u.Name = *name
	}
	if image != nil {
		replaced = u.ProfileImageObjectID
		url, obj := image.URL, image.ObjectID
		u.ProfileImageURL, u.ProfileImageObjectID = &url, &obj
	}
	out := *u
	return &out, replaced, nil
}

func (m *memoryUsers) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.slots, id)
	return nil
}

func (m *memoryUsers) IssueOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, code models.IssuedOTP, pendingEmail *string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return false, nil
	}
	slot := m.slots[userID][purpose]
	if !slot.Empty() && now.Before(*slot.ExpiresAt) {
		return false, nil
	}
	hash, exp := code.Hash, code.ExpiresAt
	if m.slots[userID] == nil {
		m.slots[userID] = map[models.OTPPurpose]models.OTPSlot{}
	}
	m.slots[userID][purpose] = models.OTPSlot{CodeHash: &hash, ExpiresAt: &exp}
	if purpose == models.OTPEmailChange && pendingEmail != nil {
		pe := *pendingEmail
		u.PendingEmail = &pe
	}
	return true, nil
}

func (m *memoryUsers) ConsumeOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, check repositories.OTPCheck, effect repositories.OTPEffect) (models.OTPVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return models.OTPNoneIssued, models.ErrNotFound
	}
	slot := m.slots[userID][purpose]
	slot.PendingEmail = u.PendingEmail

	verdict := check(slot)
	if verdict != models.OTPValid {
		return verdict, nil
	}

	switch purpose {
	case models.OTPVerification:
		u.EmailVerified = true
	case models.OTPPasswordReset:
		u.PasswordHash = effect.NewPasswordHash
		m.revokedSessions[userID]++
	case models.OTPEmailChange:
		if u.PendingEmail == nil {
			return models.OTPNoneIssued, nil
		}
		if owner := m.emailOwner(*u.PendingEmail); owner != nil && owner.ID != u.ID {
			return models.OTPNoneIssued, models.ErrConflict
		}
		u.Email = *u.PendingEmail
		u.PendingEmail = nil
	}
	delete(m.slots[userID], purpose)
	return verdict, nil
}

// slot returns a copy of a user's slot for assertions.
func (m *memoryUsers) slot(userID int64, purpose models.OTPPurpose) models.OTPSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[userID][purpose]
}

// memorySessions stores sessions keyed by token hash.
type memorySessions struct {
	mu   sync.Mutex
	rows map[string]*models.Session
}

func newMemorySessions() *memorySessions {
	return &memorySessions{rows: map[string]*models.Session{}}
}

func (m *memorySessions) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *s
	created.ID = int64(len(m.rows) + 1)
	m.rows[s.TokenHash] = &created
	return &created, nil
}

func (m *memorySessions) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[tokenHash]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (m *memorySessions) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, tokenHash)
	return nil
}

func (m *memorySessions) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.rows {
		if s.UserID == userID {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type treeFolder struct {
	publicID string
	userID   int64
	parent   *int64
	deleted  bool
}

type treeFile struct {
	userID  int64
	parent  *int64
	deleted bool
}

// memoryTree implements FolderRepository and repositories.FolderTree with
// snapshot rollback, so a failing traversal leaves no partial writes.
// failAfter > 0 makes the n-th tree call fail.
type memoryTree struct {
	folders   map[int64]*treeFolder
	files     map[int64]*treeFile
	nextID    int64
	calls     int
	failAfter int
}

var errInjected = errors.New("injected failure")

func newMemoryTree() *memoryTree {
	return &memoryTree{folders: map[int64]*treeFolder{}, files: map[int64]*treeFile{}}
}

func (t *memoryTree) addFolder(userID int64, parent *int64) int64 {
	t.nextID++
	t.folders[t.nextID] = &treeFolder{publicID: uuid.NewString(), userID: userID, parent: parent}
	return t.nextID
}

func (t *memoryTree) addFile(userID int64, parent *int64) int64 {
	t.nextID++
	t.files[t.nextID] = &treeFile{userID: userID, parent: parent}
	return t.nextID
}

func (t *memoryTree) liveFolders() int {
	n := 0
	for _, f := range t.folders {
		if !f.deleted {
			n++
		}
	}
	return n
}

func (t *memoryTree) liveFiles() int {
	n := 0
	for _, f := range t.files {
		if !f.deleted {
			n++
		}
	}
	return n
}

func (t *memoryTree) step() error {
	t.calls++
	if t.failAfter > 0 && t.calls == t.failAfter {
		return errInjected
	}
	return nil
}

func (t *memoryTree) Create(ctx context.Context, name string, userID int64, parentPublicID *string) (*models.Folder, error) {
	var parent *int64
	if parentPublicID != nil {
		id, err := t.ResolveLive(ctx, *parentPublicID, userID)
		if err != nil {
			return nil, err
		}
		parent = &id
	}
	id := t.addFolder(userID, parent)
	return &models.Folder{ID: id, PublicID: t.folders[id].publicID, Name: name, UserID: userID, ParentFolderID: parent}, nil
}

func (t *memoryTree) GetLive(ctx context.Context, publicID string, userID int64) (*models.Folder, error) {
	for id, f := range t.folders {
		if f.publicID == publicID && f.userID == userID && !f.deleted {
			return &models.Folder{ID: id, PublicID: f.publicID, UserID: userID, ParentFolderID: f.parent}, nil
		}
	}
	return nil, models.ErrNotFound
}

func (t *memoryTree) ListLiveChildren(ctx context.Context, parentID *int64, userID int64) ([]*models.Folder, error) {
	out := []*models.Folder{}
	for id, f := range t.folders {
		if f.userID == userID && !f.deleted && sameParent(f.parent, parentID) {
			out = append(out, &models.Folder{ID: id, PublicID: f.publicID, UserID: userID})
		}
	}
	return out, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (t *memoryTree) InTree(ctx context.Context, fn func(repositories.FolderTree) error) error {
	folders := make(map[int64]treeFolder, len(t.folders))
	for id, f := range t.folders {
		folders[id] = *f
	}
	files := make(map[int64]treeFile, len(t.files))
	for id, f := range t.files {
		files[id] = *f
	}

	if err := fn(t); err != nil {
		for id, f := range folders {
			*t.folders[id] = f
		}
		for id, f := range files {
			*t.files[id] = f
		}
		return err
	}
	return nil
}

func (t *memoryTree) ResolveLive(ctx context.Context, publicID string, userID int64) (int64, error) {
	if err := t.step(); err != nil {
		return 0, err
	}
	for id, f := range t.folders {
		if f.publicID == publicID && f.userID == userID && !f.deleted {
			return id, nil
		}
	}
	return 0, models.ErrNotFound
}

func (t *memoryTree) ChildFolders(ctx context.Context, folderID, userID int64) ([]int64, error) {
	if err := t.step(); err != nil {
		return nil, err
	}
	var ids []int64
	for id, f := range t.folders {
		if f.parent != nil && *f.parent == folderID && f.userID == userID && !f.deleted {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *memoryTree) TrashFiles(ctx context.Context, folderID, userID int64, at time.Time) (int64, error) {
	if err := t.step(); err != nil {
		return 0, err
	}
	var n int64
	for _, f := range t.files {
		if f.parent != nil && *f.parent == folderID && f.userID == userID && !f.deleted {
			f.deleted = true
			n++
		}
	}
	return n, nil
}

func (t *memoryTree) TrashFolder(ctx context.Context, folderID, userID int64, at time.Time) error {
	if err := t.step(); err != nil {
		return err
	}
	f, ok := t.folders[folderID]
	if !ok || f.userID != userID || f.deleted {
		return models.ErrNotFound
	}
	f.deleted = true
	return nil
}

// failingStore is a storage.Provider whose uploads fail for chosen names.
type failingStore struct {
	*storage.Memory
	failNames map[string]bool
}

func (s *failingStore) Upload(ctx context.Context, obj storage.Object) (storage.Stored, error) {
	if s.failNames[obj.Name] {
		return storage.Stored{}, errors.New("storage unavailable")
	}
	return s.Memory.Upload(ctx, obj)
}

// newTestOTP builds an OTPService on the supplied store.
func newTestOTP(store OTPStore, clock *fakeClock, notifier Notifier) *OTPService {
	manager := auth.NewOTPManager(testHasher, 10*time.Minute).WithClock(clock.Now)
	return NewOTPService(store, manager, notifier, quietLogger())
}
