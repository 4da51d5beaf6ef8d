package identity

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"assetbay/pkg/response"
)

// The identity service is an external collaborator: it hands every call a
// stable caller identity. Inside this codebase a principal is an opaque
// comparable token and nothing more.

const contextKey = "identity.principal"

var ErrNoPrincipal = errors.New("no principal on request")

type Middleware struct {
	jwtSecret []byte
}

// NewMiddleware reads IDENTITY_JWT_SECRET. When the secret is set, callers
// must present a bearer token and the principal is its subject claim; when
// unset (dev setups), the principal is taken from the X-Principal header.
func NewMiddleware() *Middleware {
	secret := os.Getenv("IDENTITY_JWT_SECRET")
	m := &Middleware{}
	if secret != "" {
		m.jwtSecret = []byte(secret)
	}
	return m
}

// Resolve extracts the caller principal and stores it on the gin context.
// Requests without a resolvable principal pass through anonymous; handlers
// that mutate state must call Principal and reject the empty value.
func (m *Middleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := m.principalFromRequest(c)
		if err != nil {
			response.SendAPIResponse(c, http.StatusUnauthorized, false, err.Error(), nil)
			c.Abort()
			return
		}
		if principal != "" {
			c.Set(contextKey, principal)
		}
		c.Next()
	}
}

func (m *Middleware) principalFromRequest(c *gin.Context) (string, error) {
	if m.jwtSecret == nil {
		return strings.TrimSpace(c.GetHeader("X-Principal")), nil
	}

	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", nil
	}
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "", errors.New("malformed authorization header")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// Principal returns the caller identity set by Resolve. The second return
// is false for anonymous requests.
func Principal(c *gin.Context) (string, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return "", false
	}
	principal, ok := v.(string)
	return principal, ok && principal != ""
}

// RequirePrincipal is the helper mutating handlers use: it replies 401 and
// returns false when the request is anonymous.
func RequirePrincipal(c *gin.Context) (string, bool) {
	principal, ok := Principal(c)
	if !ok {
		response.SendAPIResponse(c, http.StatusUnauthorized, false, "authentication required", nil)
		return "", false
	}
	return principal, true
}
