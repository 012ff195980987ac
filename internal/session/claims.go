// ABOUTME: Reads expiry and subject claims from access tokens issued by the server
// ABOUTME: Parses without signature verification since the client never holds the signing key

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing required claim")
)

func parseClaims(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// ExpiryFromJWT returns the "exp" claim of an access token.
func ExpiryFromJWT(tokenString string) (time.Time, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("%w: exp", ErrMissingClaim)
	}
	return exp.Time, nil
}

// SubjectFromJWT returns the "sub" claim of an access token.
func SubjectFromJWT(tokenString string) (string, error) {
	claims, err := parseClaims(tokenString)
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}
