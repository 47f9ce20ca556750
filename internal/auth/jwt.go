package auth

import (
	"time"

	"archiwum-plikow/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AppClaims ties an access token to a server-side session row. Handlers load
// the session (upstream API token, current path) by SessionID on every request.
type AppClaims struct {
	PrincipalID int64     `json:"principal_id"`
	Email       string    `json:"email"`
	SessionID   uuid.UUID `json:"session_id"`
	jwt.RegisteredClaims
}

func GenerateJWT(principal *models.Principal, sessionID uuid.UUID, secret string) (string, error) {
	expirationTime := time.Now().Add(1 * time.Hour)

	claims := &AppClaims{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "archiwum-plikow",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func VerifyJWT(tokenString, secret string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
