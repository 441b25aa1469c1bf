package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	jwt "github.com/golang-jwt/jwt"

	"github.com/example/carnest-gateway/internal/models"
)

var (
	ErrNoToken  = errors.New("auth: missing bearer token")
	ErrBadToken = errors.New("auth: token not parseable")
)

// SessionFromHeader builds the AuthSession from an Authorization header
// value. The gateway does not hold the upstream signing key, so claims are
// extracted without signature verification; the upstream API verifies the
// token on every mutation. The profile id here is only the driver identity
// echoed into the payload.
func SessionFromHeader(header string) (models.AuthSession, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return models.AuthSession{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(raw, claims); err != nil {
		return models.AuthSession{}, fmt.Errorf("%w: %v", ErrBadToken, err)
	}

	id := profileID(claims)
	if id == "" {
		return models.AuthSession{}, fmt.Errorf("%w: no user identity claim", ErrBadToken)
	}
	return models.AuthSession{AccessToken: raw, Profile: models.Profile{ID: id}}, nil
}

// profileID reads the user identity from the claims the upstream issues:
// user_id first (simplejwt style), sub as fallback.
func profileID(claims jwt.MapClaims) string {
	for _, key := range []string{"user_id", "sub"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
