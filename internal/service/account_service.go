package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/repository"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	searchLimit     = 50
)

// ListQuery selects a page of the directory.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

// Stats summarizes the directory.
type Stats struct {
	TotalUsers int64     `json:"total_users"`
	Timestamp  time.Time `json:"timestamp"`
}

// AccountService serves the user directory: listing, lookup and owner-scoped changes.
type AccountService struct {
	accounts repository.AccountRepository
	events   events.Dispatcher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountService creates the service.
func NewAccountService(accounts repository.AccountRepository, dispatcher events.Dispatcher, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{accounts: accounts, events: dispatcher, logger: logger, now: time.Now}
}

// List returns one page of accounts, newest first. Page and limit are clamped.
func (s *AccountService) List(ctx context.Context, q ListQuery) (domain.Page, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	search := strings.TrimSpace(q.Search)

	// pages whose offset does not fit in an int are empty
	accounts := []domain.Account{}
	if page-1 <= (math.MaxInt-limit)/limit {
		var err error
		if accounts, err = s.accounts.List(ctx, search, limit, (page-1)*limit); err != nil {
			return domain.Page{}, apperrors.NewStoreUnavailable(err)
		}
	}
	total, err := s.accounts.Count(ctx, search)
	if err != nil {
		return domain.Page{}, apperrors.NewStoreUnavailable(err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return domain.Page{
		Accounts: publicAll(accounts),
		Pagination: domain.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalUsers:  total,
			HasNextPage: page < totalPages,
			HasPrevPage: page > 1,
			Limit:       limit,
		},
	}, nil
}

// Search finds accounts whose name contains the query.
func (s *AccountService) Search(ctx context.Context, query string) ([]domain.PublicAccount, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("search query is required", map[string]any{"q": "cannot be blank"})
	}

	accounts, err := s.accounts.SearchByName(ctx, query, searchLimit)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return publicAll(accounts), nil
}

// Stats reports the directory size.
func (s *AccountService) Stats(ctx context.Context) (Stats, error) {
	total, err := s.accounts.Count(ctx, "")
	if err != nil {
		return Stats{}, apperrors.NewStoreUnavailable(err)
	}
	return Stats{TotalUsers: total, Timestamp: s.now().UTC()}, nil
}

// Get returns one account's public projection.
func (s *AccountService) Get(ctx context.Context, id int64) (domain.PublicAccount, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return domain.PublicAccount{}, lookupError(err, id)
	}
	return account.Public(), nil
}

// Update changes name, email or phone. Ownership is enforced by the router.
func (s *AccountService) Update(ctx context.Context, id int64, patch domain.AccountPatch) (domain.PublicAccount, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return domain.PublicAccount{}, lookupError(err, id)
	}

	fields, err := updateAccount(ctx, s.accounts, account, patch, "")
	if err != nil {
		return domain.PublicAccount{}, err
	}

	publishEvent(ctx, s.events, s.logger, events.NewEvent(events.EventAccountUpdated, id, events.AccountUpdatedPayload{Fields: fields}))
	return account.Public(), nil
}

// Delete removes an account.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return lookupError(err, id)
	}
	publishEvent(ctx, s.events, s.logger, events.NewEvent(events.EventAccountDeleted, id, nil))
	return nil
}

// updateAccount normalizes and applies patch, checking email uniqueness
// against other accounts first. A non-empty passwordHash is written in the
// same repository call. It returns the names of the changed fields.
func updateAccount(ctx context.Context, repo repository.AccountRepository, account *domain.Account, patch domain.AccountPatch, passwordHash string) ([]string, error) {
	if patch.Empty() && passwordHash == "" {
		return nil, nil
	}

	var fields []string
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
		fields = append(fields, "name")
	}
	if patch.Phone != nil {
		phone := strings.TrimSpace(*patch.Phone)
		patch.Phone = &phone
		fields = append(fields, "phone")
	}
	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		patch.Email = &email
		fields = append(fields, "email")

		if email != account.Email {
			existing, err := repo.GetByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != account.ID:
				return nil, apperrors.NewDuplicateEmail()
			case err != nil && !errors.Is(err, pgx.ErrNoRows):
				return nil, apperrors.NewStoreUnavailable(err)
			}
		}
	}

	patch.Apply(account)
	account.PasswordHash = passwordHash
	defer func() { account.PasswordHash = "" }()
	if err := repo.Update(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmail()
		}
		return nil, lookupError(err, account.ID)
	}
	return fields, nil
}

func lookupError(err error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return apperrors.NewStoreUnavailable(err)
}

func publicAll(accounts []domain.Account) []domain.PublicAccount {
	out := make([]domain.PublicAccount, 0, len(accounts))
	for i := range accounts {
		out = append(out, accounts[i].Public())
	}
	return out
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
