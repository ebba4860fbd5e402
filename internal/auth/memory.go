package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider for tests and local runs.
type MemoryProvider struct {
	mu       sync.Mutex
	cost     int
	accounts map[string]*Account
	now      func() time.Time
}

func NewMemoryProvider(cfg Config) *MemoryProvider {
	return &MemoryProvider{
		cost:     cfg.BcryptCost,
		accounts: make(map[string]*Account),
		now:      time.Now,
	}
}

// emailInUse must be called with mu held.
func (m *MemoryProvider) emailInUse(email, exceptUID string) bool {
	for uid, acc := range m.accounts {
		if uid != exceptUID && acc.Email == email {
			return true
		}
	}
	return false
}

func (m *MemoryProvider) CreateAccount(_ context.Context, uid, email, password string, role Role) (*Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password, m.cost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailInUse(email, "") {
		return nil, ErrEmailTaken
	}
	acc := &Account{UID: uid, Email: email, PasswordHash: hash, Role: role, CreatedAt: m.now().UTC()}
	m.accounts[uid] = acc
	out := *acc
	return &out, nil
}

func (m *MemoryProvider) UpdateAccount(_ context.Context, uid string, upd AccountUpdate) error {
	var email, hash string
	if upd.Email != nil {
		var err error
		if email, err = NormalizeEmail(*upd.Email); err != nil {
			return err
		}
	}
	if upd.Password != nil {
		if err := ValidatePassword(*upd.Password); err != nil {
			return err
		}
		var err error
		if hash, err = HashPassword(*upd.Password, m.cost); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[uid]
	if !ok {
		return ErrAccountNotFound
	}
	if email != "" {
		if m.emailInUse(email, uid) {
			return ErrEmailTaken
		}
		acc.Email = email
	}
	if hash != "" {
		acc.PasswordHash = hash
	}
	if upd.Role != nil {
		acc.Role = *upd.Role
	}
	if upd.Disabled != nil {
		acc.Disabled = *upd.Disabled
	}
	return nil
}

func (m *MemoryProvider) DeleteAccount(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[uid]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, uid)
	return nil
}

func (m *MemoryProvider) GetAccount(_ context.Context, uid string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[uid]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := *acc
	return &out, nil
}

func (m *MemoryProvider) SignIn(_ context.Context, email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.Email != email {
			continue
		}
		if !VerifyPassword(acc.PasswordHash, password) {
			return nil, ErrInvalidCredentials
		}
		if acc.Disabled {
			return nil, ErrAccountDisabled
		}
		now := m.now().UTC()
		acc.LastLoginAt = &now
		out := *acc
		return &out, nil
	}
	return nil, ErrInvalidCredentials
}
