package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/logger"
)

// Claims are the token claims issued by the identity provider. The user id is
// read from uid, falling back to sub.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid,omitempty"`
}

// UID returns the authenticated user id.
func (c *Claims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// ErrInvalidToken is returned for malformed, expired or foreign tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier checks HS256 tokens. Issuance is handled elsewhere.
type TokenVerifier struct {
	secret  []byte
	issuer  string
	leeway  time.Duration
	nowFunc func() time.Time
}

// NewTokenVerifier creates a verifier. issuer is checked when non-empty.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret:  []byte(secret),
		issuer:  issuer,
		leeway:  30 * time.Second,
		nowFunc: time.Now,
	}
}

// Verify parses tokenString and returns its claims.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.nowFunc),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UID()) == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims, nil
}

type uidKey struct{}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidKey{}).(string)
	return uid, ok && uid != ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// authenticate resolves the bearer token into a user id. With required set a
// missing or bad token is answered with 401; otherwise the request continues
// anonymously.
func (s *Server) authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				if required {
					writeError(w, r, shared.NewDomainError("http", "Authenticate", shared.ErrUnauthorized, "bearer token is required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := s.verifier.Verify(token)
			if err != nil {
				logger.FromContext(r.Context()).Warn("rejected token", logger.Err(err))
				writeError(w, r, shared.WrapError("http", "Authenticate", shared.ErrUnauthorized, "invalid token", err))
				return
			}

			uid := claims.UID()
			ctx := context.WithValue(r.Context(), uidKey{}, uid)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(logger.UserID(uid)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
