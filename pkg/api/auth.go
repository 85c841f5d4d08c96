package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/text/unicode/norm"
)

// Claims are the JWT claims expected by the submission API. Subject is the
// player's user id; admin rights come from the server-side allow-list, not
// from the token.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenValidator validates HS256 bearer tokens.
type TokenValidator struct {
	secret []byte
	admins map[string]bool
}

// NewTokenValidator builds a validator. adminSubjects is the allow-list of
// subjects granted the review endpoints.
func NewTokenValidator(secret []byte, adminSubjects []string) *TokenValidator {
	admins := make(map[string]bool, len(adminSubjects))
	for _, s := range adminSubjects {
		admins[norm.NFC.String(s)] = true
	}
	return &TokenValidator{secret: secret, admins: admins}
}

// Validate parses and validates a token string.
func (v *TokenValidator) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token subject is required")
	}
	return claims, nil
}

// IsAdmin reports whether the subject is on the admin allow-list.
func (v *TokenValidator) IsAdmin(subject string) bool {
	return v.admins[norm.NFC.String(subject)]
}

// OwnsSave reports whether the token subject owns the save id. Save ids are
// "<gameId>_<uid>"; the subject must match the uid suffix. Both sides are
// NFC-normalized so visually identical ids cannot be minted with different
// code points.
func OwnsSave(subject, ownerID string) bool {
	idx := strings.Index(ownerID, "_")
	if idx < 0 {
		return false
	}
	uid := ownerID[idx+1:]
	return uid != "" && norm.NFC.String(uid) == norm.NFC.String(subject)
}

type claimsKey struct{}

// withClaims attaches validated claims to the context.
func withClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom retrieves the validated claims, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// AuthMiddleware validates the bearer token and attaches claims. Fails
// closed: no validator means no access.
func AuthMiddleware(validator *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteUnauthenticated(w, r, "Missing Authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				WriteUnauthenticated(w, r, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}
			if validator == nil {
				WriteUnauthenticated(w, r, "Authentication not configured")
				return
			}
			claims, err := validator.Validate(parts[1])
			if err != nil {
				WriteUnauthenticated(w, r, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}
