package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/class-record-api/internal/models"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

// TokenConfig holds what is needed to verify access tokens issued by the
// identity provider.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

// TokenVerifier validates HS256 bearer tokens. It never issues tokens.
type TokenVerifier struct {
	config TokenConfig
	parser *jwt.Parser
}

// NewTokenVerifier constructs a verifier. Issuer and audience are checked only
// when configured.
func NewTokenVerifier(config TokenConfig) *TokenVerifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	return &TokenVerifier{config: config, parser: jwt.NewParser(opts...)}
}

// ValidateToken parses and validates an access token returning the claims.
func (v *TokenVerifier) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if !v.audienceAllowed(claims.Audience) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token audience not accepted")
	}
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token role not recognised")
	}
	return claims, nil
}

func (v *TokenVerifier) audienceAllowed(audience jwt.ClaimStrings) bool {
	if len(v.config.Audience) == 0 {
		return true
	}
	for _, want := range v.config.Audience {
		for _, got := range audience {
			if want == got {
				return true
			}
		}
	}
	return false
}
