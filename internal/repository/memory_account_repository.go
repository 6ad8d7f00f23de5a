package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-directory/internal/domain"
)

// MemoryAccountRepository keeps accounts in process memory. It backs local
// runs without POSTGRES_DSN and the handler tests.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]domain.Account
	now      func() time.Time
}

// NewMemoryAccountRepository returns an empty repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[int64]domain.Account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ AccountRepository = (*MemoryAccountRepository)(nil)

func (r *MemoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(account.Email, 0) {
		return ErrDuplicateEmail
	}
	r.nextID++
	now := r.now()
	account.ID = r.nextID
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryAccountRepository) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if r.emailTaken(account.Email, account.ID) {
		return ErrDuplicateEmail
	}
	stored.Name = account.Name
	stored.Email = account.Email
	stored.Phone = account.Phone
	if account.PasswordHash != "" {
		stored.PasswordHash = account.PasswordHash
	}
	stored.UpdatedAt = r.now()
	r.accounts[account.ID] = stored
	account.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return withoutSecret(stored), nil
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := r.GetByEmailWithSecret(ctx, email)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = ""
	return account, nil
}

func (r *MemoryAccountRepository) GetByEmailWithSecret(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.accounts {
		if stored.Email == email {
			found := stored
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryAccountRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.accounts, id)
	return nil
}

func (r *MemoryAccountRepository) List(_ context.Context, search string, limit, offset int) ([]domain.Account, error) {
	matches := r.filter(search)
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	return window(matches, limit, offset), nil
}

func (r *MemoryAccountRepository) Count(_ context.Context, search string) (int64, error) {
	return int64(len(r.filter(search))), nil
}

func (r *MemoryAccountRepository) SearchByName(_ context.Context, query string, limit int) ([]domain.Account, error) {
	matches := r.filter(query)
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})
	return window(matches, limit, 0), nil
}

func (r *MemoryAccountRepository) filter(search string) []domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(search)
	matches := make([]domain.Account, 0, len(r.accounts))
	for _, stored := range r.accounts {
		if needle == "" || strings.Contains(strings.ToLower(stored.Name), needle) {
			matches = append(matches, *withoutSecret(stored))
		}
	}
	return matches
}

func (r *MemoryAccountRepository) emailTaken(email string, exceptID int64) bool {
	for id, stored := range r.accounts {
		if id != exceptID && stored.Email == email {
			return true
		}
	}
	return false
}

func withoutSecret(a domain.Account) *domain.Account {
	a.PasswordHash = ""
	return &a
}

func window(accounts []domain.Account, limit, offset int) []domain.Account {
	if offset < 0 || offset >= len(accounts) {
		return []domain.Account{}
	}
	end := len(accounts)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return accounts[offset:end]
}
