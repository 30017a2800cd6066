package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceClaims are the claims on tokens minted by the Node API for its
// users. The Go side only validates; it never issues tokens.
type ServiceClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// TokenValidator validates HS256 service tokens shared with the Node API.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

func (v *TokenValidator) Validate(tokenStr string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ServiceClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing service token: %w", err)
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid service token claims")
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("service token missing user id")
	}

	return claims, nil
}

// Sign mints a token with the given user ID and TTL. Only tests and local
// tooling use this; production tokens come from the Node API.
func (v *TokenValidator) Sign(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "talktivity",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing service token: %w", err)
	}
	return signed, nil
}
