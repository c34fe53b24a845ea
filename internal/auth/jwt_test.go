package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()
	tok, err := svc.Generate(id, "Ada", "admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := svc.Validate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	ident := claims.Identity()
	if ident.UserID != id || !ident.IsAdmin || ident.DisplayName != "Ada" {
		t.Fatalf("identity = %+v", ident)
	}
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	tok, err := NewJWTService("one", 1).Generate(uuid.New(), "Bo", "student")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTService("two", 1).Validate(tok); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestStudentIsNotAdmin(t *testing.T) {
	c := Claims{UserID: uuid.New(), Role: "student"}
	if c.Identity().IsAdmin {
		t.Fatal("student must not be admin")
	}
}
