package services

import (
	"errors"
	"time"

	"food-storefront/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenClaims are the fields carried in a session token.
type TokenClaims struct {
	UserID string
	Email  string
	Name   string
}

func GenerateToken(secret []byte, user *models.User, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT_SECRET not set")
	}
	if user == nil || user.ID == "" {
		return "", errors.New("empty userID passed to GenerateToken")
	}
	claims := jwt.MapClaims{
		"userID": user.ID,
		"email":  user.Email,
		"name":   user.Name,
		"exp":    time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ValidateToken(secret []byte, tokenString string) (*TokenClaims, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT_SECRET not set")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, _ := claims["userID"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return &TokenClaims{UserID: userID, Email: email, Name: name}, nil
}
