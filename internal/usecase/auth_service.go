package usecase

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-backend/internal/domain"
)

var ErrUnauthenticated = errors.New("invalid or missing token")

type AuthService struct {
	JWTSecret string
	TTL       time.Duration
}

// Issue signs a token for userID. Sessions are owned elsewhere; this exists
// for tooling and tests.
func (s *AuthService) Issue(userID string, role domain.Role) (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.JWTSecret))
}

func (s *AuthService) Verify(token string) (domain.Principal, error) {
	if s.JWTSecret == "" || token == "" {
		return domain.Principal{}, ErrUnauthenticated
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return domain.Principal{}, ErrUnauthenticated
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Principal{}, ErrUnauthenticated
	}
	uid, _ := m["user_id"].(string)
	if uid == "" {
		return domain.Principal{}, ErrUnauthenticated
	}
	role, _ := m["role"].(string)
	p := domain.Principal{UserID: uid, Role: domain.RoleUser}
	if domain.Role(role) == domain.RoleAdmin {
		p.Role = domain.RoleAdmin
	}
	return p, nil
}
