// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/kozaktomas/face-inbox/internal/database"
)

// MockUserStore is an in-memory implementation of database.UserWriter.
// Iteration order is insertion order, like the real backends' creation order.
type MockUserStore struct {
	mu     sync.RWMutex
	users  map[string]*database.User
	order  []string
	nextID int

	// Error injection
	ListError        error
	GetError         error
	CreateError      error
	SetMailLinkError error
	UpdateTokenError error
	ClearError       error
}

// NewMockUserStore creates a new mock user store
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		users: make(map[string]*database.User),
	}
}

// AddUser adds a user to the mock store, assigning an ID if empty
func (m *MockUserStore) AddUser(u database.User) *database.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		m.nextID++
		u.ID = "user-" + strconv.Itoa(m.nextID)
	}
	stored := cloneUser(&u)
	m.users[u.ID] = stored
	m.order = append(m.order, u.ID)
	return cloneUser(stored)
}

// ListWithEncodings returns users with at least one encoding in insertion order
func (m *MockUserStore) ListWithEncodings(ctx context.Context) ([]database.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.User
	for _, id := range m.order {
		if u := m.users[id]; u.HasEncodings() {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

// List returns all users in insertion order
func (m *MockUserStore) List(ctx context.Context) ([]database.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.User, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *cloneUser(m.users[id]))
	}
	return out, nil
}

// Get retrieves a user by ID
func (m *MockUserStore) Get(ctx context.Context, id string) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// Count returns the number of stored users
func (m *MockUserStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// Create stores a new user with one encoding
func (m *MockUserStore) Create(ctx context.Context, encoding []float32, createdAt time.Time) (*database.User, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	enc := make([]float32, len(encoding))
	copy(enc, encoding)
	return m.AddUser(database.User{
		FaceEncodings: [][]float32{enc},
		CreatedAt:     createdAt,
	}), nil
}

// SetMailLink stores the linkage record
func (m *MockUserStore) SetMailLink(ctx context.Context, id string, link database.MailLink) error {
	if m.SetMailLinkError != nil {
		return m.SetMailLinkError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrUserNotFound
	}
	u.Mail = &link
	return nil
}

// UpdateToken replaces the token of an existing linkage
func (m *MockUserStore) UpdateToken(ctx context.Context, id string, token database.Token) error {
	if m.UpdateTokenError != nil {
		return m.UpdateTokenError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Mail == nil {
		return database.ErrUserNotFound
	}
	u.Mail.Token = token
	return nil
}

// ClearMailLink removes the linkage record
func (m *MockUserStore) ClearMailLink(ctx context.Context, id string) error {
	if m.ClearError != nil {
		return m.ClearError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrUserNotFound
	}
	u.Mail = nil
	return nil
}

// Delete removes a user
func (m *MockUserStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return database.ErrUserNotFound
	}
	delete(m.users, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneUser(u *database.User) *database.User {
	c := *u
	c.FaceEncodings = make([][]float32, len(u.FaceEncodings))
	for i, e := range u.FaceEncodings {
		c.FaceEncodings[i] = append([]float32(nil), e...)
	}
	if u.Mail != nil {
		link := *u.Mail
		c.Mail = &link
	}
	return &c
}
