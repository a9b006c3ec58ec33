package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtCustomClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the provided donor ID.
func GenerateToken(secret, donorID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtCustomClaims{
		ID: donorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   donorID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates signature and expiry and returns the embedded donor ID.
func ParseToken(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*jwtCustomClaims); ok && token.Valid {
		if claims.ID == "" {
			return "", errors.New("token has no subject")
		}
		return claims.ID, nil
	}

	return "", jwt.ErrTokenInvalidClaims
}
