package service

import (
	"errors"
	"testing"

	"cartridge_conditioner/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type fakeAuthRepo struct {
	createID  int
	createErr error
	users     map[string]*models.User
	getErr    error

	lastUsername string
	lastHash     string
}

func (f *fakeAuthRepo) Create(username, hash string) (int, error) {
	f.lastUsername = username
	f.lastHash = hash
	return f.createID, f.createErr
}

func (f *fakeAuthRepo) GetByUsername(username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.users[username], nil
}

func TestAuthSignUp_HashesPassword(t *testing.T) {
	repo := &fakeAuthRepo{createID: 5}
	svc := NewAuthService(repo)

	id, err := svc.SignUp("op", "secret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if id != 5 {
		t.Fatalf("id=%d", id)
	}
	if repo.lastHash == "secret" || repo.lastHash == "" {
		t.Fatalf("password stored unhashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.lastHash), []byte("secret")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestAuthSignUp_EmptyPasswordRejected(t *testing.T) {
	svc := NewAuthService(&fakeAuthRepo{})
	if _, err := svc.SignUp("op", "   "); err == nil {
		t.Fatalf("expected error for blank password")
	}
}

func TestAuthTokenRoundTrip(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	repo := &fakeAuthRepo{users: map[string]*models.User{
		"op": {ID: 9, Username: "op", PasswordHash: string(hash)},
	}}
	svc := NewAuthService(repo)

	token, err := svc.GenerateToken("op", "pw")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	id, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if id != 9 {
		t.Fatalf("id=%d, want 9", id)
	}
}

func TestAuthGenerateToken_Failures(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	repo := &fakeAuthRepo{users: map[string]*models.User{
		"op": {ID: 9, Username: "op", PasswordHash: string(hash)},
	}}
	svc := NewAuthService(repo)

	if _, err := svc.GenerateToken("nobody", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
	if _, err := svc.GenerateToken("op", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong password: %v", err)
	}
}

func TestAuthParseToken_Garbage(t *testing.T) {
	svc := NewAuthService(&fakeAuthRepo{})
	if _, err := svc.ParseToken("not-a-jwt"); err == nil {
		t.Fatalf("expected parse error")
	}
}
