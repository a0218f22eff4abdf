package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/support-service/internal/domain"
)

// TokenManager validates bearer tokens issued by the external authentication
// provider. Both sides share an HS256 secret; the claims carry the stable
// subject id and the role tag, which is all the core ever needs.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes the JWT payload.
type Claims struct {
	SubjectID string           `json:"sub"`
	Role      domain.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for the subject. Production tokens come from the
// authentication provider; this mirrors its format for local runs and tests.
func (tm *TokenManager) GenerateToken(subjectID string, role domain.ActorRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		SubjectID: subjectID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Role != domain.RoleRequester && claims.Role != domain.RoleStaff {
		return nil, errors.New("unknown role claim")
	}
	return claims, nil
}
