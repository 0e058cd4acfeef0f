package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ctxClientToken = "client_token"
	ctxUserID      = "user_id"
	sessionUserKey = "user_id"
)

// rememberKey scopes the remembered user id to one client token.
func rememberKey(c *gin.Context) string {
	return sessionUserKey + ":" + c.GetString(ctxClientToken)
}

var errNoToken = errors.New("no token")

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set(ctxClientToken, token)
		c.Next()
	}
}

// OriginFilter rejects cross-origin requests from origins not listed. An empty
// list allows every origin.
func OriginFilter(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(allowedOrigins) == 0 {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = c.GetHeader("Sec-WebSocket-Origin")
		}

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if !allowed && origin != "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
			return
		}
		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// JWTClaims carries the logical user id issued by the chat backend.
type JWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// IdentityMiddleware resolves the logical user id of the request, in order:
// a signed token (token query or Bearer header) when jwtSecret is set, the
// userId query, the id remembered in the cookie session for this client
// token. The id may end up empty.
func IdentityMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		key := rememberKey(c)

		raw, err := userFromToken(c, jwtSecret)
		switch {
		case err == nil:
		case errors.Is(err, errNoToken):
			raw = c.Query("userId")
			if raw == "" {
				if v, ok := sess.Get(key).(string); ok {
					raw = v
				}
			}
		default:
			log.Warn().Err(err).Str("module", "adapters.http").Msg("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		user, err := domain.ParseLogicalUserID(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if user != "" {
			sess.Set(key, string(user))
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(ctxUserID, user)
		c.Next()
	}
}

func userFromToken(c *gin.Context, jwtSecret string) (string, error) {
	if jwtSecret == "" {
		return "", errNoToken
	}
	tokenString := c.Query("token")
	if tokenString == "" {
		parts := strings.Split(c.GetHeader("Authorization"), " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		return "", errNoToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	return claims.UserID, nil
}

func userOf(c *gin.Context) domain.LogicalUserID {
	v, _ := c.Get(ctxUserID)
	user, _ := v.(domain.LogicalUserID)
	return user
}
