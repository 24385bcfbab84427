package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stempel-app/stempel/internal/storage"
	"github.com/stempel-app/stempel/internal/storage/bolt"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stempel.bolt")
	store, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 4 // keep the tests fast
	}
	return NewService(store.Accounts(), cfg)
}

func register(t *testing.T, svc *Service, name, email, password string) *storage.Account {
	t.Helper()

	account, err := svc.Register(context.Background(), name, email, password)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return account
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	account := register(t, svc, "Ada", "ada@example.com", "hunter22")
	if account.ID == "" {
		t.Fatal("account has no ID")
	}
	if account.Status != storage.AccountInactive {
		t.Errorf("status = %q, want %q", account.Status, storage.AccountInactive)
	}
	if account.PasswordHash == "hunter22" {
		t.Error("password stored in plaintext")
	}

	logged, token, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("login returned empty token")
	}
	if logged.Status != storage.AccountActive {
		t.Errorf("status after login = %q, want %q", logged.Status, storage.AccountActive)
	}
	if logged.LastActiveDate.IsZero() {
		t.Error("login did not stamp last active date")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t, Config{})

	register(t, svc, "Ada", "ada@example.com", "hunter22")
	if _, err := svc.Register(context.Background(), "Other", "ada@example.com", "different"); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("second register = %v, want ErrDuplicateEmail", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	register(t, svc, "Ada", "ada@example.com", "hunter22")

	if _, _, err := svc.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email = %v, want ErrInvalidCredentials", err)
	}
}

func TestBreakStateMachine(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	account := register(t, svc, "Ada", "ada@example.com", "hunter22")
	if _, _, err := svc.Login(ctx, "ada@example.com", "hunter22"); err != nil {
		t.Fatalf("login: %v", err)
	}

	onBreak, err := svc.StartBreak(ctx, account.ID)
	if err != nil {
		t.Fatalf("start break: %v", err)
	}
	if onBreak.Status != storage.AccountOnBreak {
		t.Errorf("status = %q, want %q", onBreak.Status, storage.AccountOnBreak)
	}
	if onBreak.CurrentBreakStart == nil {
		t.Error("break start not stamped")
	}

	if _, err := svc.StartBreak(ctx, account.ID); !errors.Is(err, ErrAlreadyOnBreak) {
		t.Errorf("double start = %v, want ErrAlreadyOnBreak", err)
	}

	// Logging out mid-break must be rejected so the ledger never holds
	// a dangling open interval.
	if _, err := svc.Logout(ctx, account.ID); !errors.Is(err, ErrOnBreak) {
		t.Errorf("logout on break = %v, want ErrOnBreak", err)
	}

	active, err := svc.EndBreak(ctx, account.ID)
	if err != nil {
		t.Fatalf("end break: %v", err)
	}
	if active.Status != storage.AccountActive {
		t.Errorf("status after end = %q, want %q", active.Status, storage.AccountActive)
	}
	if active.CurrentBreakStart != nil {
		t.Error("break start not cleared")
	}

	if _, err := svc.EndBreak(ctx, account.ID); !errors.Is(err, ErrNotOnBreak) {
		t.Errorf("end without break = %v, want ErrNotOnBreak", err)
	}

	loggedOut, err := svc.Logout(ctx, account.ID)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if loggedOut.Status != storage.AccountInactive {
		t.Errorf("status after logout = %q, want %q", loggedOut.Status, storage.AccountInactive)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	account := register(t, svc, "Ada", "ada@example.com", "hunter22")
	if _, err := svc.Logout(ctx, account.ID); err != nil {
		t.Fatalf("logout while inactive: %v", err)
	}
}

func TestAddWorkTimeAccumulates(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	account := register(t, svc, "Ada", "ada@example.com", "hunter22")

	updated, err := svc.AddWorkTime(ctx, account.ID, 60)
	if err != nil {
		t.Fatalf("add work time: %v", err)
	}
	if updated.DailyWorkTime != 60 {
		t.Errorf("daily work time = %d, want 60", updated.DailyWorkTime)
	}

	updated, err = svc.AddWorkTime(ctx, account.ID, 30)
	if err != nil {
		t.Fatalf("add work time: %v", err)
	}
	if updated.DailyWorkTime != 90 {
		t.Errorf("daily work time = %d, want 90", updated.DailyWorkTime)
	}
	if updated.Status != storage.AccountActive {
		t.Errorf("status = %q, want %q", updated.Status, storage.AccountActive)
	}

	updated, err = svc.AddWorkTime(ctx, account.ID, -200)
	if err != nil {
		t.Fatalf("add work time: %v", err)
	}
	if updated.DailyWorkTime != 0 {
		t.Errorf("daily work time = %d, want clamp to 0", updated.DailyWorkTime)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	account := register(t, svc, "Ada", "ada@example.com", "hunter22")
	register(t, svc, "Grace", "grace@example.com", "hunter22")

	updated, err := svc.UpdateProfile(ctx, account.ID, ProfileUpdate{Name: "Ada L.", Avatar: "avatars/ada.png"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Ada L." || updated.Avatar != "avatars/ada.png" {
		t.Errorf("profile not updated: %+v", updated)
	}
	if updated.Email != "ada@example.com" {
		t.Errorf("email changed unexpectedly to %q", updated.Email)
	}

	if _, err := svc.UpdateProfile(ctx, account.ID, ProfileUpdate{Email: "grace@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("email collision = %v, want ErrDuplicateEmail", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc := newTestService(t, Config{})
	ctx := context.Background()

	account := register(t, svc, "Ada", "ada@example.com", "hunter22")

	if err := svc.ChangePassword(ctx, account.ID, "wrong", "newpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong current password = %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, account.ID, "hunter22", "newpassword"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, _, err := svc.Login(ctx, "ada@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still accepted")
	}
	if _, _, err := svc.Login(ctx, "ada@example.com", "newpassword"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestService(t, Config{})

	token, err := svc.GenerateToken("acc-42", "ada@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.AccountID != "acc-42" {
		t.Errorf("account id = %q, want acc-42", claims.AccountID)
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("email = %q, want ada@example.com", claims.Email)
	}

	if _, err := svc.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token = %v, want ErrInvalidToken", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	svc := newTestService(t, Config{TokenExpiration: -time.Minute})

	token, err := svc.GenerateToken("acc-42", "ada@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired token = %v, want ErrTokenExpired", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	svc := newTestService(t, Config{JWTSecret: "secret-a"})
	other := newTestService(t, Config{JWTSecret: "secret-b"})

	token, err := svc.GenerateToken("acc-42", "ada@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("cross-secret token = %v, want ErrInvalidToken", err)
	}
}
