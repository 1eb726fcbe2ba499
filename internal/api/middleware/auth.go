package middleware

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/ayo6706/shop-treasury/internal/api/problem"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	clientContextKey contextKey = "client_id"
	scopeContextKey  contextKey = "scopes"
	traceContextKey  contextKey = "trace_id"
)

// Scopes granted to bus adapters.
const (
	ScopeRead  = "economy:read"
	ScopeWrite = "economy:write"
)

var jwtSecret []byte
var jwtIssuer string
var jwtAudience string

// Claims identify the adapter calling the treasury.
type Claims struct {
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

// AuthMiddleware validates the bearer token and injects the client id and
// scopes into the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), "", "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), "", "Invalid token format")
			return
		}
		if len(jwtSecret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), "", "auth is not configured")
			return
		}

		claims := &Claims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if jwtIssuer != "" {
			opts = append(opts, jwt.WithIssuer(jwtIssuer))
		}
		if jwtAudience != "" {
			opts = append(opts, jwt.WithAudience(jwtAudience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return jwtSecret, nil
		}, opts...)
		if err != nil || !token.Valid {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), "", "Invalid token")
			return
		}
		if claims.ClientID == "" || (claims.Subject != "" && claims.Subject != claims.ClientID) {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), "", "Invalid token claims")
			return
		}

		recordClient(r.Context(), claims.ClientID)
		ctx := context.WithValue(r.Context(), clientContextKey, claims.ClientID)
		ctx = context.WithValue(ctx, scopeContextKey, claims.Scopes)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects clients whose token does not carry scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(ScopesFromContext(r.Context()), scope) {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-scope"), "", "token lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IssueToken signs a client token. It is used by operators and tests to mint
// adapter credentials.
func IssueToken(claims Claims) (string, error) {
	if len(jwtSecret) == 0 {
		return "", fmt.Errorf("auth is not configured")
	}
	if claims.Issuer == "" {
		claims.Issuer = jwtIssuer
	}
	if claims.Subject == "" {
		claims.Subject = claims.ClientID
	}
	if len(claims.Audience) == 0 && jwtAudience != "" {
		claims.Audience = jwt.ClaimStrings{jwtAudience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ClientIDFromContext returns the authenticated adapter id.
func ClientIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(clientContextKey).(string); ok {
		return v
	}
	return ""
}

func ScopesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(scopeContextKey).([]string); ok {
		return v
	}
	return nil
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
