package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeUserRepo is a map-backed UserRepository
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return &repository.DBError{Kind: repository.ErrConflict, Message: "Email address is already in use"}
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string, includeDeleted bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || (u.IsDeleted() && !includeDeleted) {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && !u.IsDeleted() {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) List(_ context.Context, filter domain.UserFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if !u.IsDeleted() && (filter.Role == "" || u.Role == filter.Role) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok || existing.IsDeleted() {
		return repository.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.ID != user.ID && u.Email == user.Email {
			return &repository.DBError{Kind: repository.ErrConflict, Message: "Email address is already in use"}
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsDeleted() {
		return repository.ErrUserNotFound
	}
	u.Password = hash
	return nil
}

func (r *fakeUserRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsDeleted() {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (r *fakeUserRepo) HardDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) Restore(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.IsDeleted() {
		return repository.ErrUserNotFound
	}
	u.DeletedAt = nil
	return nil
}

// fakeSessionRepo is a map-backed SessionRepository
type fakeSessionRepo struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]*domain.Session
	touched  []string
	err      error
	// beforeGet runs at the start of GetByID
	beforeGet func()
}

func newFakeSessionRepo(now func() time.Time) *fakeSessionRepo {
	return &fakeSessionRepo{now: now, sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionRepo) get(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *fakeSessionRepo) touchedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.touched...)
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	if r.beforeGet != nil {
		r.beforeGet()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.get(id), nil
}

func (r *fakeSessionRepo) ListActive(_ context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Session{}
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive(r.now()) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.After(out[j].LastActiveAt) })
	return out, nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
	if s, ok := r.sessions[id]; ok {
		s.LastActiveAt = r.now()
	}
	return nil
}

func (r *fakeSessionRepo) UpdateToken(_ context.Context, id, oldToken, newToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsActive(r.now()) {
		return repository.ErrSessionInactive
	}
	if s.Token != oldToken {
		return repository.ErrTokenMismatch
	}
	s.Token = newToken
	s.ExpiresAt = expiresAt
	s.LastActiveAt = r.now()
	return nil
}

func (r *fakeSessionRepo) Terminate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if s, ok := r.sessions[id]; ok && s.IsActive(r.now()) {
		s.ExpiresAt = r.now()
	}
	return nil
}

func (r *fakeSessionRepo) TerminateAll(_ context.Context, userID, exceptID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.ID != exceptID && s.IsActive(r.now()) {
			s.ExpiresAt = r.now()
			n++
		}
	}
	return n, nil
}

// fakeRevocations is an in-memory RevocationStore
type fakeRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Duration
	err     error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{entries: make(map[string]time.Duration)}
}

func (f *fakeRevocations) IsRevoked(_ context.Context, tokenType domain.TokenType, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.entries[repository.RevocationKey(tokenType, token)]
	return ok, nil
}

func (f *fakeRevocations) Revoke(_ context.Context, tokenType domain.TokenType, token string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	ttl = ttl.Truncate(time.Second)
	if ttl <= 0 {
		return nil
	}
	f.entries[repository.RevocationKey(tokenType, token)] = ttl
	return nil
}

func (f *fakeRevocations) ttl(tokenType domain.TokenType, token string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.entries[repository.RevocationKey(tokenType, token)]
	return d, ok
}

// mockPublisher records published auth events
type mockPublisher struct {
	mock.Mock
}

func newMockPublisher() *mockPublisher {
	m := &mockPublisher{}
	m.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return m
}

func (m *mockPublisher) Publish(ctx context.Context, eventType domain.AuthEventType, userID, sessionID string, meta map[string]string) error {
	args := m.Called(ctx, eventType, userID, sessionID, meta)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

var errStoreDown = errors.New("store unavailable")
