// Package auth verifies bearer tokens issued by the identity provider and
// carries the authenticated user through request contexts.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

// Verifier checks a raw token and returns the user it was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (user string, err error)
}

// OIDCVerifier verifies ID tokens against an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// IssuerURL returns the issuer for an Auth0 tenant domain.
func IssuerURL(domain string) string {
	return "https://" + strings.TrimSuffix(domain, "/") + "/"
}

// NewOIDCVerifier discovers the provider at issuer and verifies tokens whose
// audience is clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewStaticVerifier verifies tokens with fixed keys instead of the
// provider's published key set.
func NewStaticVerifier(issuer, clientID string, keys oidc.KeySet, now func() time.Time) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID, Now: now})}
}

func (v *OIDCVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperrors.New(apperrors.CodeUnauthorized, "Unauthorized. Token is empty")
	}
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnauthorized, err, "Unauthorized. %v", err)
	}
	if idToken.Subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthorized, "Unauthorized. Token has no subject")
	}
	return idToken.Subject, nil
}

type ctxKey struct{}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(ctxKey{}).(string)
	return user, ok && user != ""
}

// TokenFromHeader extracts the token from an Authorization header value.
// Both "Bearer <token>" and a bare token are accepted.
func TokenFromHeader(h string) string {
	h = strings.TrimSpace(h)
	if _, token, ok := strings.Cut(h, " "); ok {
		return strings.TrimSpace(token)
	}
	return h
}

// ErrorFunc writes an authentication failure.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware rejects requests without a valid token and stores the user in
// the request context for the handlers behind it.
func Middleware(v Verifier, fail ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := v.Verify(r.Context(), TokenFromHeader(r.Header.Get("Authorization")))
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
