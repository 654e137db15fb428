package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/honeynil/ShopBotLedger/internal/models"
)

// TokenService issues and checks admin bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

func (s *TokenService) Generate(adminID int64) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("JWT secret not set")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"admin_id": adminID,
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) Validate(tokenStr string) (*models.AdminClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	adminID, ok := claims["admin_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid admin_id in token")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("invalid exp in token")
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, fmt.Errorf("invalid iat in token")
	}
	return &models.AdminClaims{AdminID: int64(adminID), ExpiresAt: exp.Time, IssuedAt: iat.Time}, nil
}
