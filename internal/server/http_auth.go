package server

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"git.cscs.ch/openchami/backlog-mcp/internal/policy"
)

const sessionTokenEnv = "BACKLOG_MCP_SESSION_TOKEN"

var (
	// ErrSessionTokenMissing indicates no HTTP session token was configured.
	ErrSessionTokenMissing = errors.New("mcp session token is not configured")
	// ErrBearerTokenMissing indicates the Authorization header carried no bearer token.
	ErrBearerTokenMissing = errors.New("missing or malformed Authorization bearer token")
	// ErrBearerTokenInvalid indicates the bearer token did not match the session token.
	ErrBearerTokenInvalid = errors.New("invalid bearer token for MCP session")
)

// SessionPrincipal carries caller identity for tool scope checks.
type SessionPrincipal struct {
	Subject string
	Scopes  []string
}

// SessionAuthenticator authenticates HTTP tool calls. The stdio transport
// runs under the local user and is not authenticated.
type SessionAuthenticator interface {
	AuthenticateHTTP(r *http.Request) (SessionPrincipal, error)
}

// TokenSessionAuthenticator compares bearer tokens against the configured
// session token. It is unrelated to the Backlog API key.
type TokenSessionAuthenticator struct {
	token     string
	principal SessionPrincipal
}

// NewTokenSessionAuthenticator creates a session authenticator. JWT-shaped
// tokens contribute their sub and scope claims; opaque tokens get the admin
// scope.
func NewTokenSessionAuthenticator(token string) *TokenSessionAuthenticator {
	trimmed := strings.TrimSpace(token)
	return &TokenSessionAuthenticator{
		token:     trimmed,
		principal: deriveSessionPrincipal(trimmed),
	}
}

// AuthenticateHTTP validates the Authorization bearer token.
func (a *TokenSessionAuthenticator) AuthenticateHTTP(r *http.Request) (SessionPrincipal, error) {
	if a == nil || a.token == "" {
		return SessionPrincipal{}, ErrSessionTokenMissing
	}
	presented := parseBearerToken(r.Header.Get("Authorization"))
	if presented == "" {
		return SessionPrincipal{}, ErrBearerTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) != 1 {
		return SessionPrincipal{}, ErrBearerTokenInvalid
	}
	return SessionPrincipal{
		Subject: a.principal.Subject,
		Scopes:  append([]string(nil), a.principal.Scopes...),
	}, nil
}

func deriveSessionPrincipal(token string) SessionPrincipal {
	principal := SessionPrincipal{
		Subject: "mcp-session",
		Scopes:  []string{policy.AdminScope},
	}
	claims, ok := decodeJWTClaims(token)
	if !ok {
		return principal
	}
	if sub, _ := claims["sub"].(string); strings.TrimSpace(sub) != "" {
		principal.Subject = strings.TrimSpace(sub)
	}
	principal.Scopes = scopesFromClaims(claims)
	return principal
}

func parseBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// decodeJWTClaims reads the payload segment without verifying the signature.
// The token itself is the shared secret; claims only narrow its scopes.
func decodeJWTClaims(token string) (map[string]any, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, false
	}
	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, false
	}
	return claims, true
}

func scopesFromClaims(claims map[string]any) []string {
	var scopes []string
	for _, key := range []string{"scope", "scopes", "scp"} {
		if scopes = claimStrings(claims[key]); len(scopes) > 0 {
			break
		}
	}
	for _, role := range claimStrings(claims["roles"]) {
		if role == policy.AdminScope {
			scopes = append(scopes, policy.AdminScope)
			break
		}
	}

	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func claimStrings(value any) []string {
	switch typed := value.(type) {
	case string:
		return strings.Fields(typed)
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return nil
	}
}

func requireToolScopes(tool ToolSpec, principal SessionPrincipal) error {
	return policy.RequireScopes(tool.Name, tool.RequiredScopes, principal.Scopes)
}

func authFailureResponse(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrSessionTokenMissing):
		return http.StatusUnauthorized, "MCP session token is not configured; set " + sessionTokenEnv
	case errors.Is(err, ErrBearerTokenMissing):
		return http.StatusUnauthorized, "missing or malformed Authorization header; expected Bearer <token>"
	case errors.Is(err, ErrBearerTokenInvalid):
		return http.StatusUnauthorized, "invalid bearer token for MCP session"
	default:
		return http.StatusUnauthorized, err.Error()
	}
}
