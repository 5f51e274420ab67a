package server

import (
	"net/http"
	"strings"
	"time"

	"todoapp/internal/domain/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "jwt_token"
	sessionTTL    = 24 * time.Hour
	userIDKey     = "user_id"
)

type sessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (api *TodoAPI) issueSession(userID string) (string, time.Time, error) {
	expires := api.clock.Now().Add(sessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(api.clock.Now()),
		},
	})
	signed, err := token.SignedString([]byte(api.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (api *TodoAPI) parseSession(raw string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(api.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(api.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.UserID == "" {
		return "", errors.ErrUnauthorized
	}
	return claims.UserID, nil
}

// sessionToken reads the token from the session cookie, falling back to an
// Authorization bearer header.
func sessionToken(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(sessionCookie); err == nil && cookie != "" {
		return cookie
	}
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (api *TodoAPI) authRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := sessionToken(ctx)
		if raw == "" {
			abortWithError(ctx, errors.ErrUnauthorized)
			return
		}
		userID, err := api.parseSession(raw)
		if err != nil {
			abortWithError(ctx, err)
			return
		}
		ctx.Set(userIDKey, userID)
		ctx.Next()
	}
}

func currentUserID(ctx *gin.Context) string {
	return ctx.GetString(userIDKey)
}

func setSessionCookie(ctx *gin.Context, token string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(sessionCookie, token, maxAge, "/", "", false, true)
}
