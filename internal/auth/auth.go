package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stempel-app/stempel/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenExpiration is the default lifetime for identity tokens.
	DefaultTokenExpiration = 7 * 24 * time.Hour

	// DefaultBcryptCost is the default cost factor for bcrypt password hashing.
	DefaultBcryptCost = 12
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a token is malformed or its
	// signature does not verify.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrDuplicateEmail is returned when an email is already registered
	// to a different account.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrAlreadyOnBreak is returned when a break is started while one
	// is running.
	ErrAlreadyOnBreak = errors.New("already on a break")

	// ErrNotOnBreak is returned when a break is ended without one running.
	ErrNotOnBreak = errors.New("not currently on a break")

	// ErrOnBreak is returned when an operation requires the break to be
	// ended first (logging out mid-break).
	ErrOnBreak = errors.New("currently on a break")
)

// Claims represents the JWT claims binding a token to one account.
type Claims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Service handles account identity, credentials, and the account-level
// activity state machine (inactive <-> active <-> break).
type Service struct {
	accounts        storage.AccountStore
	jwtSecret       []byte
	tokenExpiration time.Duration
	bcryptCost      int
}

// Config holds the auth service configuration.
type Config struct {
	JWTSecret       string
	TokenExpiration time.Duration
	BcryptCost      int
}

// NewService creates a new authentication service.
func NewService(accounts storage.AccountStore, cfg Config) *Service {
	if cfg.TokenExpiration == 0 {
		cfg.TokenExpiration = DefaultTokenExpiration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}

	return &Service{
		accounts:        accounts,
		jwtSecret:       []byte(cfg.JWTSecret),
		tokenExpiration: cfg.TokenExpiration,
		bcryptCost:      cfg.BcryptCost,
	}
}

// HashPassword hashes a password using bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Register creates a new inactive account. The plaintext password is
// hashed before it reaches the store.
func (s *Service) Register(ctx context.Context, name, email, password string) (*storage.Account, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := newAccountID()
	if err != nil {
		return nil, err
	}

	account := storage.Account{
		ID:             id,
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Status:         storage.AccountInactive,
		LastActiveDate: time.Now(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	created, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("reload account: %w", err)
	}
	return created, nil
}

// Login verifies the credentials and issues an identity token. A
// successful login transitions the account to active and stamps the
// last active date, mirrored by Logout's transition back to inactive.
func (s *Service) Login(ctx context.Context, email, password string) (*storage.Account, string, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get account: %w", err)
	}

	if err := VerifyPassword(password, account.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	account.Status = storage.AccountActive
	account.LastActiveDate = time.Now()
	if err := s.accounts.Update(ctx, *account); err != nil {
		return nil, "", fmt.Errorf("update account: %w", err)
	}

	token, err := s.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return account, token, nil
}

// Logout transitions the account to inactive. Logging out while on a
// break is rejected; the break has to be ended first so the open
// interval is never stranded. Logging out an already inactive account
// is not an error.
func (s *Service) Logout(ctx context.Context, id string) (*storage.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if account.Status == storage.AccountOnBreak {
		return nil, ErrOnBreak
	}

	account.Status = storage.AccountInactive
	account.LastActiveDate = time.Now()
	if err := s.accounts.Update(ctx, *account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	return account, nil
}

// Account retrieves an account by ID.
func (s *Service) Account(ctx context.Context, id string) (*storage.Account, error) {
	return s.accounts.Get(ctx, id)
}

// ListAccounts retrieves every account, sorted by name.
func (s *Service) ListAccounts(ctx context.Context) ([]storage.Account, error) {
	return s.accounts.List(ctx)
}

// ProfileUpdate holds the mutable profile fields. Empty fields are
// left unchanged.
type ProfileUpdate struct {
	Name   string
	Email  string
	Avatar string
}

// UpdateProfile mutates the account's profile fields.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*storage.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != "" {
		account.Name = update.Name
	}
	if update.Email != "" {
		account.Email = update.Email
	}
	if update.Avatar != "" {
		account.Avatar = update.Avatar
	}

	if err := s.accounts.Update(ctx, *account); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	return account, nil
}

// ChangePassword replaces the stored hash after verifying the current
// password.
func (s *Service) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := VerifyPassword(currentPassword, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	account.PasswordHash = hash
	if err := s.accounts.Update(ctx, *account); err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	return nil
}

// StartBreak transitions the account onto a break and stamps the break
// start time.
func (s *Service) StartBreak(ctx context.Context, id string) (*storage.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if account.Status == storage.AccountOnBreak {
		return nil, ErrAlreadyOnBreak
	}

	now := time.Now()
	account.Status = storage.AccountOnBreak
	account.CurrentBreakStart = &now
	if err := s.accounts.Update(ctx, *account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	return account, nil
}

// EndBreak transitions the account back to active and clears the break
// start time.
func (s *Service) EndBreak(ctx context.Context, id string) (*storage.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if account.Status != storage.AccountOnBreak || account.CurrentBreakStart == nil {
		return nil, ErrNotOnBreak
	}

	account.Status = storage.AccountActive
	account.CurrentBreakStart = nil
	if err := s.accounts.Update(ctx, *account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	return account, nil
}

// AddWorkTime adds minutes to the account's running daily total,
// clamped at zero from below, marks the account active, and stamps the
// last active date.
func (s *Service) AddWorkTime(ctx context.Context, id string, minutes int) (*storage.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	account.DailyWorkTime += minutes
	if account.DailyWorkTime < 0 {
		account.DailyWorkTime = 0
	}
	account.Status = storage.AccountActive
	account.LastActiveDate = time.Now()
	if err := s.accounts.Update(ctx, *account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	return account, nil
}

// ValidateToken validates an identity token and returns its claims.
// Expired and malformed tokens are distinguished; both are rejected.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken generates a new identity token bound to the account.
func (s *Service) GenerateToken(accountID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		AccountID: accountID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signedToken, nil
}

// TokenExpiration returns the configured token lifetime.
func (s *Service) TokenExpiration() time.Duration {
	return s.tokenExpiration
}

// newAccountID generates a random account ID.
func newAccountID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate account id: %w", err)
	}
	return "acc-" + hex.EncodeToString(buf), nil
}
