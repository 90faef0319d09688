package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer signs room-scoped admin capability tokens.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue returns a fresh token for roomID. Every call yields a different token.
func (t *TokenIssuer) Issue(roomID string) (string, error) {
	claims := &jwt.RegisteredClaims{
		ID:       uuid.NewString(),
		Subject:  roomID,
		IssuedAt: jwt.NewNumericDate(t.now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	ss, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}

	return ss, nil
}

// Verify checks the signature and that the token was issued for roomID.
func (t *TokenIssuer) Verify(token, roomID string) error {
	parsed, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (interface{}, error) {
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return fmt.Errorf("parse admin token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return errors.New("invalid admin token")
	}

	if claims.Subject != roomID {
		return errors.New("admin token issued for another room")
	}

	return nil
}
