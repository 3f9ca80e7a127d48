package token

import (
	"errors"
	"time"

	"cinematch/backend/internal/config"

	jwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "cinematch-service"

var ErrInvalidToken = errors.New("invalid or expired token")

// Payload is the identity a token carries.
type Payload struct {
	UserID   string
	Username string
}

// Generate signs a token for the given identity.
func Generate(p Payload, secret string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  p.UserID,
		"username": p.Username,
		"exp":      time.Now().Add(config.TokenTTL).Unix(),
		"iss":      issuer,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// Parse verifies a token and returns its identity.
func Parse(tokenString, secret string) (*Payload, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}
	return &Payload{UserID: userID, Username: username}, nil
}
