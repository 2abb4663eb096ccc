package auth

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"parkspot/internal/db"
)

type contextKey string

const claimsKey contextKey = "authClaims"

// Claims is the authenticated caller as carried in the JWT.
type Claims struct {
	UserID     int64
	Email      string
	Role       string
	FacilityID *int64
}

// Middleware validates the Bearer token and stores the caller's claims on the
// request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		secret := os.Getenv("JWT_SECRET")
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		mapClaims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims := &Claims{}
		if v, ok := mapClaims["user_id"].(float64); ok {
			claims.UserID = int64(v)
		}
		if v, ok := mapClaims["email"].(string); ok {
			claims.Email = v
		}
		if v, ok := mapClaims["role"].(string); ok {
			claims.Role = v
		}
		if v, ok := mapClaims["facility_id"].(float64); ok {
			facilityID := int64(v)
			claims.FacilityID = &facilityID
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// WithClaims returns a context carrying the caller's claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// RequireRole wraps a handler so only the given roles get through.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := FromContext(r.Context())
			if claims == nil || !allowed[claims.Role] {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the caller's claims, or nil outside the middleware.
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// IsAdmin reports whether the caller may act on any facility.
func (c *Claims) IsAdmin() bool {
	return c.Role == db.RoleAdmin
}

// ManagesFacility reports whether the caller is the manager bound to the
// given facility.
func (c *Claims) ManagesFacility(facilityID int64) bool {
	return c.Role == db.RoleManager && c.FacilityID != nil && *c.FacilityID == facilityID
}
