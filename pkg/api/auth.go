package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/apiresponses"
	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/system"
)

const (
	AuthHeaderKey = "Authorization"
	tokenIssuer   = "exception-subscriptions"
)

// AdminClaims are the claims of an admin bearer token.
type AdminClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthHandler checks HS256 bearer tokens on the admin endpoints. Without a
// configured secret every request is let through.
type AuthHandler struct {
	secret []byte
	log    *zap.SugaredLogger
}

func NewAuth(log *zap.SugaredLogger, cfg config.Auth) *AuthHandler {
	a := &AuthHandler{log: log.Named("auth")}
	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
	} else {
		a.log.Warn("auth.jwtSecret is not set: admin endpoints are unauthenticated")
	}
	return a
}

// Enabled reports whether tokens are checked.
func (a *AuthHandler) Enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs an admin token for subject valid for ttl.
func IssueToken(secret, subject, email string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := time.Now()
	claims := AdminClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (a *AuthHandler) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return a.secret, nil
}

func (a *AuthHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		authHeader := c.GetHeader(AuthHeaderKey)
		// delete the header to avoid logging it by accident
		c.Request.Header.Del(AuthHeaderKey)
		if !strings.HasPrefix(authHeader, "Bearer ") {
			apiresponses.RespondUnauthorizedWithMessage(c, "No Bearer token provided in Authorization header")
			c.Abort()
			return
		}
		bearer := strings.TrimSpace(authHeader[7:])

		claims := &AdminClaims{}
		token, err := jwt.ParseWithClaims(bearer, claims, a.keyFunc, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			a.log.Debugw("Rejected admin token", "error", err)
			apiresponses.RespondUnauthorizedWithMessage(c, "invalid token")
			c.Abort()
			return
		}
		if claims.Subject == "" {
			apiresponses.RespondUnauthorizedWithMessage(c, "token has no subject")
			c.Abort()
			return
		}

		c.Set("token", token)
		c.Set("subject", claims.Subject)
		if claims.Email != "" {
			c.Set("email", claims.Email)
		}
		c.Set(system.ReqLoggerKey, system.EnrichReqLoggerWithAuth(c, system.GetReqLogger(c, a.log)))

		c.Next()
	}
}
