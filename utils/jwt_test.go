package utils

import (
	"testing"
	"time"
)

func TestTokenParser(t *testing.T) {
	secret := []byte("s3cret")
	parse := NewTokenParser(secret)

	token, err := SignToken(secret, 9, "zoe", time.Minute)
	if err != nil {
		t.Fatalf("SignToken() error = %v", err)
	}
	claims, err := parse(token)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if claims.UserID != 9 || claims.Username != "zoe" {
		t.Errorf("claims = %+v", claims)
	}

	anonymous, _ := SignToken(secret, 0, "nobody", time.Minute)
	if _, err := parse(anonymous); err == nil {
		t.Error("token without a user id was accepted")
	}
	if _, err := NewTokenParser([]byte("other"))(token); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}
