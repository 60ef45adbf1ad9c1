// Package jwtoken validates operator access tokens.
//
// Session management is delegated to an external auth provider; this service
// only verifies the HS256 signature with the shared key and extracts the
// operator and tenant claims.
package jwtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"certo/internal/platform/middleware"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

// Claims is the JWT payload shape issued by the auth provider.
type Claims struct {
	OperatorID string `json:"operator_id"`
	TenantID   string `json:"tenant_id"`
	Name       string `json:"name"`
	jwt.RegisteredClaims
}

// Service validates tokens and adapts their claims for the auth middleware.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// ValidateToken implements middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (*middleware.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	operatorID, err := id.ParseOperatorID(claims.OperatorID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing operator identity")
	}
	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing tenant scope")
	}
	return &middleware.Claims{OperatorID: operatorID, TenantID: tenantID, Name: claims.Name}, nil
}

// Mint signs a token for the given operator and tenant. Production tokens come
// from the auth provider; this exists for local development and tests.
func (s *Service) Mint(operatorID id.OperatorID, tenantID id.TenantID, name string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OperatorID: operatorID.String(),
		TenantID:   tenantID.String(),
		Name:       name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}
