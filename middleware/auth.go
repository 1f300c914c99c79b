package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/tailorhub/tailorhub-api/config"
	"github.com/tailorhub/tailorhub-api/models"
)

// ActorKey is the gin context key holding the authenticated models.Actor
const ActorKey = "actor"

// CustomClaims contains the marketplace identity carried in an Auth0 token.
type CustomClaims struct {
	Role    string `json:"role"`
	ActorID uint   `json:"actor_id"`
}

// Validate rejects tokens without a usable identity.
func (c CustomClaims) Validate(ctx context.Context) error {
	if !models.Role(c.Role).Valid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	if c.ActorID == 0 {
		return errors.New("actor_id claim is required")
	}
	return nil
}

// Actor converts the claims to an actor
func (c CustomClaims) Actor() models.Actor {
	return models.Actor{ID: c.ActorID, Role: models.Role(c.Role)}
}

// LocalClaims are the claims of a locally signed HS256 token.
type LocalClaims struct {
	ActorID uint   `json:"uid"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// SignLocalToken issues an HS256 token for actor that expires after ttl
func SignLocalToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := LocalClaims{
		ActorID: actor.ID,
		Role:    string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%s|%d", actor.Role, actor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func writeInvalidToken(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INVALID_TOKEN",
			"message": "Failed to validate JWT.",
		},
	})
}

// EnsureValidToken is a middleware that validates Auth0 RS256 tokens.
func EnsureValidToken(cfg *config.Config, logger *zap.Logger) (gin.HandlerFunc, error) {
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Info("Encountered error while validating JWT", zap.Error(err))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			logger.Warn("Failed to write error response", zap.Error(writeErr))
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			claims, ok := token.CustomClaims.(*CustomClaims)
			if !ok {
				return
			}
			SetActor(c, claims.Actor())
			c.Request = r
			passed = true
		}

		// Use the JWT middleware to check the token
		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			if !c.Writer.Written() {
				writeInvalidToken(c)
			}
			c.Abort()
			return
		}
		c.Next()
	}, nil
}

// EnsureLocalToken is a middleware that validates HS256 tokens signed with secret.
func EnsureLocalToken(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			writeInvalidToken(c)
			return
		}

		claims := &LocalClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil {
			logger.Info("Encountered error while validating JWT", zap.Error(err))
			writeInvalidToken(c)
			return
		}

		actor := models.Actor{ID: claims.ActorID, Role: models.Role(claims.Role)}
		if actor.ID == 0 || !actor.Role.Valid() {
			writeInvalidToken(c)
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

// SetActor stores the authenticated actor in the Gin context
func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(ActorKey, actor)
}

// GetActor extracts the authenticated actor from the Gin context
func GetActor(c *gin.Context) (models.Actor, error) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return models.Actor{}, &AuthError{Code: "MISSING_ACTOR", Message: "Actor not found in context"}
	}

	actor, ok := value.(models.Actor)
	if !ok {
		return models.Actor{}, &AuthError{Code: "INVALID_ACTOR", Message: "Actor is not in the expected format"}
	}

	return actor, nil
}

// RequireRoles is a middleware that only lets the given roles through
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := GetActor(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Authentication required",
				},
			})
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Insufficient permissions to access this resource",
			},
		})
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
