package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errUnauthorized = errors.New("unauthorized")

// authenticator derives the participant id of a request. With a secret
// configured the id is the subject of an HMAC-signed session token; without
// one the relay trusts the "participant" query parameter, or assigns a fresh
// id.
type authenticator struct {
	secret []byte
}

func newAuthenticator(secret string) *authenticator {
	return &authenticator{secret: []byte(secret)}
}

func (a *authenticator) identify(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		if id := r.URL.Query().Get("participant"); id != "" {
			return id, nil
		}
		return uuid.NewString(), nil
	}

	tokenString := sessionToken(r)
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", errUnauthorized)
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", errUnauthorized)
	}
	return claims.Subject, nil
}

// sessionToken looks for the token in the session-token cookie, then a
// bearer header, then the "token" query parameter used by browsers that
// cannot set headers on websocket upgrades.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie("session-token"); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
