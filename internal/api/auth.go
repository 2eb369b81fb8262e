package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerKey = "gravity.owner"

// ErrUnauthenticated is returned for missing or invalid bearer tokens.
var ErrUnauthenticated = errors.New("api: missing or invalid token")

// Claims are the token claims the API reads.
type Claims struct {
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user name, falling back to the subject.
func (c *Claims) Identity() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}

// Authenticator verifies bearer tokens.
type Authenticator struct {
	parser *jwt.Parser
	key    interface{}
}

// NewAuthenticator builds an Authenticator from cfg.
func NewAuthenticator(cfg JWTConfig) (*Authenticator, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	switch {
	case cfg.Secret != "" && cfg.PublicKeyPEM != "":
		return nil, fmt.Errorf("api: jwt secret and public key are mutually exclusive")
	case cfg.Secret != "":
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		return &Authenticator{parser: jwt.NewParser(opts...), key: []byte(cfg.Secret)}, nil
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("api: parse jwt public key: %w", err)
		}
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		return &Authenticator{parser: jwt.NewParser(opts...), key: key}, nil
	}
	return nil, fmt.Errorf("api: jwt secret or public key required")
}

// Owner verifies token and returns the sanitised owner id it names.
func (a *Authenticator) Owner(token string) (string, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	owner := model.SanitizeOwner(claims.Identity())
	if owner == "" {
		return "", fmt.Errorf("%w: no usable identity claim", ErrUnauthenticated)
	}
	return owner, nil
}

// RequireOwner rejects requests without a valid bearer token and stores the
// owner id on the gin context.
func (a *Authenticator) RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= 7 || !strings.EqualFold(header[:7], "Bearer ") {
			abort(c, http.StatusUnauthorized, "unauthenticated", ErrUnauthenticated)
			return
		}
		owner, err := a.Owner(header[7:])
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthenticated", err)
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}
