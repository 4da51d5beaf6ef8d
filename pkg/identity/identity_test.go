package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func principalEchoRouter(m *Middleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Resolve())
	r.GET("/whoami", func(c *gin.Context) {
		principal, ok := Principal(c)
		c.JSON(http.StatusOK, gin.H{"principal": principal, "authenticated": ok})
	})
	r.POST("/mutate", func(c *gin.Context) {
		if _, ok := RequirePrincipal(c); !ok {
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestMiddleware_HeaderMode(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "")
	r := principalEchoRouter(NewMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Principal", "alice")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"principal":"alice"`)
	require.Contains(t, w.Body.String(), `"authenticated":true`)
}

func TestMiddleware_AnonymousPassesThroughReads(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "")
	r := principalEchoRouter(NewMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"authenticated":false`)
}

func TestMiddleware_RequirePrincipal_RejectsAnonymous(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "")
	r := principalEchoRouter(NewMiddleware())

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_JWTMode_ValidToken(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "test-secret")
	r := principalEchoRouter(NewMiddleware())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"principal":"alice"`)
}

// With a secret configured, the X-Principal header is ignored: identity
// comes from the token or not at all.
func TestMiddleware_JWTMode_IgnoresHeader(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "test-secret")
	r := principalEchoRouter(NewMiddleware())

	req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Header.Set("X-Principal", "mallory")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_JWTMode_BadSignature(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "test-secret")
	r := principalEchoRouter(NewMiddleware())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_JWTMode_MalformedHeader(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "test-secret")
	r := principalEchoRouter(NewMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
