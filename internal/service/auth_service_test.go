package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/user-directory/internal/auth"
	"github.com/spec-kit/user-directory/internal/domain"
	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/repository"
	apperrors "github.com/spec-kit/user-directory/pkg/util/errorutil"
)

const anaPassword = "Abcd123!"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memRevoker struct {
	mu        sync.Mutex
	revoked   map[string]time.Time
	revokeErr error
	lookupErr error
}

func newMemRevoker() *memRevoker {
	return &memRevoker{revoked: make(map[string]time.Time)}
}

func (r *memRevoker) Revoke(_ context.Context, id string, exp time.Time) error {
	if r.revokeErr != nil {
		return r.revokeErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[id] = exp
	return nil
}

func (r *memRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	if r.lookupErr != nil {
		return false, r.lookupErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[id]
	return ok, nil
}

// countingHasher records how many comparisons ran.
type countingHasher struct {
	auth.PasswordHasher
	mu       sync.Mutex
	compares int
}

func (h *countingHasher) Compare(hashed, plain string) error {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.PasswordHasher.Compare(hashed, plain)
}

// failingRepo overrides selected repository calls with errors.
type failingRepo struct {
	repository.AccountRepository
	getByEmailErr error
	createErr     error
	getByIDErr    error
	updateErr     error
	updateStamp   time.Time
}

func (r *failingRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if r.getByEmailErr != nil {
		return nil, r.getByEmailErr
	}
	return r.AccountRepository.GetByEmail(ctx, email)
}

func (r *failingRepo) Create(ctx context.Context, account *domain.Account) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.AccountRepository.Create(ctx, account)
}

func (r *failingRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	if r.getByIDErr != nil {
		return nil, r.getByIDErr
	}
	return r.AccountRepository.GetByID(ctx, id)
}

func (r *failingRepo) Update(ctx context.Context, account *domain.Account) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if err := r.AccountRepository.Update(ctx, account); err != nil {
		return err
	}
	if !r.updateStamp.IsZero() {
		account.UpdatedAt = r.updateStamp
	}
	return nil
}

type fixture struct {
	svc        *AuthService
	repo       repository.AccountRepository
	hasher     *countingHasher
	revoker    *memRevoker
	clock      *testClock
	tokens     *auth.TokenManager
	dispatched []events.Event
}

func newFixture(t *testing.T, repo repository.AccountRepository) *fixture {
	t.Helper()
	if repo == nil {
		repo = repository.NewMemoryAccountRepository()
	}
	f := &fixture{
		repo:    repo,
		hasher:  &countingHasher{PasswordHasher: auth.NewBcryptHasher(bcrypt.MinCost)},
		revoker: newMemRevoker(),
		clock:   &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.tokens = auth.NewTokenManager("test-secret", time.Hour, auth.WithClock(f.clock.Now))

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.dispatched = append(f.dispatched, e)
			return nil
		})
	}

	f.svc = NewAuthService(AuthDependencies{
		Accounts:   repo,
		Hasher:     f.hasher,
		Tokens:     f.tokens,
		Revoker:    f.revoker,
		Dispatcher: dispatcher,
	})
	return f
}

func (f *fixture) registerAna(t *testing.T) domain.PublicAccount {
	t.Helper()
	acc, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Ana",
		Email:    "ana@x.io",
		Phone:    "+1-555-0100",
		Password: anaPassword,
	})
	require.NoError(t, err)
	return acc
}

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t, nil)

	acc, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "  Ana ",
		Email:    "  Ana@X.io ",
		Phone:    "+1-555-0100",
		Password: anaPassword,
	})
	require.NoError(t, err)

	assert.Positive(t, acc.ID)
	assert.Equal(t, "Ana", acc.Name)
	assert.Equal(t, "ana@x.io", acc.Email)

	stored, err := f.repo.GetByEmailWithSecret(context.Background(), "ana@x.io")
	require.NoError(t, err)
	assert.NotEqual(t, anaPassword, stored.PasswordHash)

	require.Len(t, f.dispatched, 1)
	assert.Equal(t, events.EventAccountRegistered, f.dispatched[0].Type)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.registerAna(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Other", Email: "ANA@x.io", Password: anaPassword})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateEmail))
}

func TestAuthService_RegisterRaceOnInsert(t *testing.T) {
	repo := &failingRepo{AccountRepository: repository.NewMemoryAccountRepository(), createErr: repository.ErrDuplicateEmail}
	f := newFixture(t, repo)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@x.io", Password: anaPassword})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateEmail))
}

func TestAuthService_RegisterStoreFailure(t *testing.T) {
	repo := &failingRepo{AccountRepository: repository.NewMemoryAccountRepository(), getByEmailErr: errors.New("pool exhausted")}
	f := newFixture(t, repo)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@x.io", Password: anaPassword})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t, nil)
	acc := f.registerAna(t)

	session, err := f.svc.Login(context.Background(), "ANA@x.io", anaPassword)
	require.NoError(t, err)

	assert.Equal(t, acc.ID, session.Account.ID)
	assert.Equal(t, f.clock.Now().Add(time.Hour), session.Token.ExpiresAt)

	claims, err := f.tokens.ParseToken(session.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.AccountID)
	assert.Equal(t, "ana@x.io", claims.Email)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, nil)
	f.registerAna(t)
	ctx := context.Background()

	_, wrongPassword := f.svc.Login(ctx, "ana@x.io", "Wrong123!")
	before := f.hasher.compares
	_, unknownEmail := f.svc.Login(ctx, "nobody@x.io", anaPassword)

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	a, b := apperrors.ToDomainError(wrongPassword), apperrors.ToDomainError(unknownEmail)
	assert.Equal(t, apperrors.CodeInvalidCredentials, a.Code)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, a.HTTPStatus, b.HTTPStatus)
	assert.Equal(t, a.Details, b.Details)
	assert.Equal(t, before+1, f.hasher.compares, "unknown email still runs a hash comparison")
}

func TestAuthService_RefreshExtendsExpiry(t *testing.T) {
	f := newFixture(t, nil)
	f.registerAna(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "ana@x.io", anaPassword)
	require.NoError(t, err)

	sameSecond, err := f.svc.Refresh(ctx, session.Token.Value)
	require.NoError(t, err)
	assert.True(t, sameSecond.ExpiresAt.After(session.Token.ExpiresAt))

	f.clock.Advance(10 * time.Minute)
	later, err := f.svc.Refresh(ctx, sameSecond.Value)
	require.NoError(t, err)
	assert.True(t, later.ExpiresAt.After(sameSecond.ExpiresAt))
	assert.NotEqual(t, sameSecond.ID, later.ID)

	// the previous token keeps working until it expires
	_, err = f.svc.Refresh(ctx, session.Token.Value)
	require.NoError(t, err)
}

func TestAuthService_RefreshRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t, nil)
		f.registerAna(t)
		session, err := f.svc.Login(ctx, "ana@x.io", anaPassword)
		require.NoError(t, err)

		f.clock.Advance(2 * time.Hour)
		_, err = f.svc.Refresh(ctx, session.Token.Value)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
		assert.Equal(t, apperrors.ReasonExpired, apperrors.Reason(err))
	})

	t.Run("garbage", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Refresh(ctx, "not-a-token")
		assert.Equal(t, apperrors.ReasonInvalid, apperrors.Reason(err))
	})

	t.Run("account deleted", func(t *testing.T) {
		f := newFixture(t, nil)
		acc := f.registerAna(t)
		session, err := f.svc.Login(ctx, "ana@x.io", anaPassword)
		require.NoError(t, err)

		require.NoError(t, f.repo.Delete(ctx, acc.ID))
		_, err = f.svc.Refresh(ctx, session.Token.Value)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))
		assert.Equal(t, apperrors.ReasonInvalid, apperrors.Reason(err))
	})

	t.Run("store unavailable", func(t *testing.T) {
		repo := &failingRepo{AccountRepository: repository.NewMemoryAccountRepository()}
		f := newFixture(t, repo)
		f.registerAna(t)
		session, err := f.svc.Login(ctx, "ana@x.io", anaPassword)
		require.NoError(t, err)

		repo.getByIDErr = errors.New("connection reset")
		_, err = f.svc.Refresh(ctx, session.Token.Value)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))
	})

	t.Run("revocation lookup fails", func(t *testing.T) {
		f := newFixture(t, nil)
		f.registerAna(t)
		session, err := f.svc.Login(ctx, "ana@x.io", anaPassword)
		require.NoError(t, err)

		f.revoker.lookupErr = errors.New("redis down")
		_, err = f.svc.Refresh(ctx, session.Token.Value)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))
	})
}

func TestAuthService_LogoutRevokes(t *testing.T) {
	f := newFixture(t, nil)
	f.registerAna(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "ana@x.io", anaPassword)
	require.NoError(t, err)

	f.svc.Logout(ctx, session.Token.Value)
	assert.Contains(t, f.revoker.revoked, session.Token.ID)

	_, err = f.svc.Refresh(ctx, session.Token.Value)
	assert.Equal(t, apperrors.ReasonInvalid, apperrors.Reason(err))
	assert.Equal(t, events.EventAccountLoggedOut, f.dispatched[len(f.dispatched)-1].Type)
}

func TestAuthService_LogoutNeverFails(t *testing.T) {
	f := newFixture(t, nil)
	f.registerAna(t)
	ctx := context.Background()
	session, err := f.svc.Login(ctx, "ana@x.io", anaPassword)
	require.NoError(t, err)

	f.revoker.revokeErr = errors.New("redis down")
	assert.NotPanics(t, func() {
		f.svc.Logout(ctx, session.Token.Value)
		f.svc.Logout(ctx, "")
		f.svc.Logout(ctx, "garbage")
	})
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	strPtr := func(s string) *string { return &s }

	t.Run("patches fields", func(t *testing.T) {
		f := newFixture(t, nil)
		acc := f.registerAna(t)

		got, err := f.svc.UpdateProfile(ctx, acc.ID, ProfileUpdate{Patch: domain.AccountPatch{Name: strPtr("Ana Maria"), Email: strPtr("ANA@x.io")}})
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", got.Name)
		assert.Equal(t, "ana@x.io", got.Email)
	})

	t.Run("new password needs current", func(t *testing.T) {
		f := newFixture(t, nil)
		acc := f.registerAna(t)

		_, err := f.svc.UpdateProfile(ctx, acc.ID, ProfileUpdate{NewPassword: "Newpass1!"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))

		_, err = f.svc.UpdateProfile(ctx, acc.ID, ProfileUpdate{CurrentPassword: "Wrong123!", NewPassword: "Newpass1!"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))

		_, err = f.svc.Login(ctx, "ana@x.io", anaPassword)
		require.NoError(t, err, "failed attempts leave the old password in place")
	})

	t.Run("changes password", func(t *testing.T) {
		f := newFixture(t, nil)
		acc := f.registerAna(t)

		_, err := f.svc.UpdateProfile(ctx, acc.ID, ProfileUpdate{CurrentPassword: anaPassword, NewPassword: "Newpass1!"})
		require.NoError(t, err)

		_, err = f.svc.Login(ctx, "ana@x.io", "Newpass1!")
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, "ana@x.io", anaPassword)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))
	})

	t.Run("failed write leaves profile and password unchanged", func(t *testing.T) {
		repo := &failingRepo{AccountRepository: repository.NewMemoryAccountRepository()}
		f := newFixture(t, repo)
		acc := f.registerAna(t)
		repo.updateErr = errors.New("conn reset")

		_, err := f.svc.UpdateProfile(ctx, acc.ID, ProfileUpdate{
			Patch:           domain.AccountPatch{Name: strPtr("Changed Name")},
			CurrentPassword: anaPassword,
			NewPassword:     "Newpass1!",
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))

		stored, err := repo.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", stored.Name)
		_, err = f.svc.Login(ctx, "ana@x.io", anaPassword)
		require.NoError(t, err)
	})

	t.Run("password only change returns fresh updated_at", func(t *testing.T) {
		stamp := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
		repo := &failingRepo{AccountRepository: repository.NewMemoryAccountRepository(), updateStamp: stamp}
		f := newFixture(t, repo)
		acc := f.registerAna(t)

		got, err := f.svc.UpdateProfile(ctx, acc.ID, ProfileUpdate{CurrentPassword: anaPassword, NewPassword: "Newpass1!"})
		require.NoError(t, err)
		assert.Equal(t, stamp, got.UpdatedAt)
		assert.Equal(t, "Ana", got.Name)
	})

	t.Run("email taken by another account", func(t *testing.T) {
		f := newFixture(t, nil)
		acc := f.registerAna(t)
		_, err := f.svc.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@x.io", Password: anaPassword})
		require.NoError(t, err)

		_, err = f.svc.UpdateProfile(ctx, acc.ID, ProfileUpdate{Patch: domain.AccountPatch{Email: strPtr("bo@x.io")}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateEmail))
	})
}

func TestAuthService_ProfileNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Profile(context.Background(), 42)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
