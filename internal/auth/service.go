// ABOUTME: Account login and registration backed by the SQLite account store
// ABOUTME: Issues HS256 JWTs and hashes passwords with bcrypt

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/warelay/internal/fault"
	"github.com/2389/warelay/internal/store"
)

const minPasswordLength = 6

// dummyHash is compared against when the username is unknown so login
// timing does not reveal which usernames exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AccountStore defines what the auth service needs from account storage.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *store.Account) error
	GetAccount(ctx context.Context, username string) (*store.Account, error)
	TouchLastLogin(ctx context.Context, username string, t time.Time) error
	ListAccounts(ctx context.Context) ([]*store.Account, error)
}

// Service handles account registration and login.
type Service struct {
	accounts AccountStore
	verifier *JWTVerifier
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewService creates an auth service. Pass nil logger for default.
func NewService(accounts AccountStore, verifier *JWTVerifier, tokenTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: accounts,
		verifier: verifier,
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "auth"),
	}
}

// Login verifies the credentials and returns a signed token plus the
// account. Bad username and bad password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *store.Account, error) {
	if username == "" || password == "" {
		return "", nil, fault.New(fault.InvalidArgument, "username and password are required")
	}

	account, err := s.accounts.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a bcrypt comparison to keep timing constant
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return "", nil, fault.New(fault.Unauthorized, "invalid credentials")
		}
		return "", nil, fmt.Errorf("looking up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, fault.New(fault.Unauthorized, "invalid credentials")
	}

	now := time.Now()
	if err := s.accounts.TouchLastLogin(ctx, username, now); err != nil {
		s.logger.Warn("failed to stamp last login", "username", username, "error", err)
	}
	account.LastLogin = &now

	token, err := s.issueToken(account)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("user logged in", "username", username)
	return token, account, nil
}

// Register creates a new account and returns a signed token for it.
func (s *Service) Register(ctx context.Context, username, password, displayName, role string) (string, *store.Account, error) {
	if username == "" || password == "" || displayName == "" {
		return "", nil, fault.New(fault.InvalidArgument, "username, password and name are required")
	}
	if len(password) < minPasswordLength {
		return "", nil, fault.Newf(fault.InvalidArgument, "password must be at least %d characters", minPasswordLength)
	}
	if role == "" {
		role = "user"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing password: %w", err)
	}

	account := &store.Account{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			return "", nil, fault.Wrap(fault.InvalidArgument, err, "username already taken")
		}
		return "", nil, fmt.Errorf("creating account: %w", err)
	}

	token, err := s.issueToken(account)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("user registered", "username", username, "role", role)
	return token, account, nil
}

// ListAccounts returns every registered account. Only admins may list
// accounts; everyone else gets a Forbidden fault.
func (s *Service) ListAccounts(ctx context.Context, caller *Principal) ([]*store.Account, error) {
	if caller == nil || caller.Role != "admin" {
		return nil, fault.New(fault.Forbidden, "only administrators may list accounts")
	}

	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return accounts, nil
}

func (s *Service) issueToken(account *store.Account) (string, error) {
	token, err := s.verifier.Generate(Principal{
		ID:   account.Username,
		Name: account.DisplayName,
		Role: account.Role,
	}, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}
