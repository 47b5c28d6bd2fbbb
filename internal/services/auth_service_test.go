package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/banddude/voiceid/internal/models"
	"github.com/banddude/voiceid/internal/utils"
)

const testSecret = "test-secret"

func TestRegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testSecret, "voiceid-test")

	user, err := svc.Register(context.Background(), "a@example.com", "hunter22", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.PasswordHash == "hunter22" {
		t.Fatal("password must not be stored in the clear")
	}

	token, got, err := svc.Login(context.Background(), "a@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("logged in as %q, want %q", got.ID, user.ID)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims["sub"] != user.ID {
		t.Fatalf("sub = %v, want %q", claims["sub"], user.ID)
	}
	if claims["role"] != string(models.RoleAdmin) {
		t.Fatalf("role = %v, want admin", claims["role"])
	}
	if claims["iss"] != "voiceid-test" {
		t.Fatalf("iss = %v", claims["iss"])
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testSecret, "")

	if _, err := svc.Register(context.Background(), "a@example.com", "pw", models.RoleUser); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(context.Background(), "a@example.com", "pw2", models.RoleUser)
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("got %v, want CONFLICT", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), testSecret, "")

	if _, err := svc.Register(context.Background(), "a@example.com", "right", models.RoleUser); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "a@example.com", "wrong"); !utils.IsCode(err, utils.CodeUnauthorized) {
		t.Fatalf("wrong password: got %v, want UNAUTHORIZED", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@example.com", "right"); !utils.IsCode(err, utils.CodeUnauthorized) {
		t.Fatalf("unknown email: got %v, want UNAUTHORIZED", err)
	}
}
