// Package authz extracts the trusted caller role claim from a bearer JWT.
// Authorization is confined to this perimeter: the claim is
// trusted as-is, the engine never calls out to fetch identity.
package authz

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerforge/corebank/internal/core/ports"
)

// Claims is the subset of the bearer token's claims ledgercore reads.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ParseCaller validates tokenString against secret and returns the trusted
// Caller claim it carries.
func ParseCaller(tokenString, secret string) (ports.Caller, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return ports.Caller{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return ports.Caller{}, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return ports.Caller{}, errors.New("token missing subject")
	}

	role := claims.Role
	if role == "" {
		role = "user"
	}
	return ports.Caller{UserID: claims.Subject, Role: role}, nil
}
