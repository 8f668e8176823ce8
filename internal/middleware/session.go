package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/utils"
)

// Identity errors. A request failing either check never reaches the chat core.
var (
	ErrMissingCredential = errors.New("session credential missing")
	ErrInvalidCredential = errors.New("session credential invalid")
)

// Fiber locals populated once the caller is resolved.
const (
	LocalCaller   = "caller"
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
)

// IdentityResolver validates the signed session token shared with the HTTP session layer.
type IdentityResolver struct {
	secret     []byte
	cookieName string
}

// NewIdentityResolver builds a resolver for HS256 tokens carried in the named cookie.
func NewIdentityResolver(secret, cookieName string) *IdentityResolver {
	if strings.TrimSpace(cookieName) == "" {
		cookieName = "session"
	}
	return &IdentityResolver{secret: []byte(secret), cookieName: cookieName}
}

// CookieName returns the cookie the session token is read from.
func (r *IdentityResolver) CookieName() string {
	return r.cookieName
}

// ResolveRequest extracts the token from the session cookie, falling back to a bearer header.
func (r *IdentityResolver) ResolveRequest(c *fiber.Ctx) (models.Caller, error) {
	token := strings.TrimSpace(c.Cookies(r.cookieName))
	if token == "" {
		token = bearerToken(c.Get(fiber.HeaderAuthorization))
	}
	return r.Resolve(token)
}

// Resolve verifies signature and expiry and returns the caller encoded in the token.
func (r *IdentityResolver) Resolve(tokenString string) (models.Caller, error) {
	if strings.TrimSpace(tokenString) == "" {
		return models.Caller{}, ErrMissingCredential
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return r.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return models.Caller{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Caller{}, ErrInvalidCredential
	}

	userID := extractUserIDFromClaims(claims)
	if userID == "" {
		return models.Caller{}, ErrInvalidCredential
	}

	role, ok := models.ParseRole(extractUserRoleFromClaims(claims))
	if !ok {
		return models.Caller{}, ErrInvalidCredential
	}

	return models.Caller{UserID: userID, Role: role}, nil
}

// Issue signs a session token for the caller. The HTTP session layer uses the same format.
func (r *IdentityResolver) Issue(caller models.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  caller.UserID,
		"role": string(caller.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

// SessionProtected rejects requests without a valid session and stores the caller in locals.
func SessionProtected(resolver *IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := resolver.ResolveRequest(c)
		if err != nil {
			message := "invalid session"
			if errors.Is(err, ErrMissingCredential) {
				message = "authentication required"
			}
			return utils.SendError(c, fiber.StatusUnauthorized, message)
		}

		c.Locals(LocalCaller, caller)
		c.Locals(LocalUserID, caller.UserID)
		c.Locals(LocalUserRole, string(caller.Role))
		return c.Next()
	}
}

// CallerFromLocals converts the value stored under LocalCaller back into a caller.
func CallerFromLocals(value interface{}) (models.Caller, bool) {
	caller, ok := value.(models.Caller)
	if !ok || caller.UserID == "" {
		return models.Caller{}, false
	}
	return caller, true
}

func bearerToken(authorization string) string {
	const bearer = "Bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(authorization[len(bearer):])
}

func extractUserIDFromClaims(claims jwt.MapClaims) string {
	keys := []string{"sub", "user_id", "userId", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized := normalizeUserID(value); normalized != "" {
				return normalized
			}
		}
	}
	return ""
}

func normalizeUserID(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return strconv.FormatUint(uint64(v), 10)
	default:
		return ""
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}
