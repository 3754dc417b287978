package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/auth"
)

// Envelope limits from spec §4.9: a request body over 10 MiB, or parameters
// nested more than 10 levels deep, is rejected before a tool handler ever
// runs.
const (
	maxRequestBytes = 10 * 1024 * 1024
	maxNestingDepth = 10
)

// dangerousKeys are stripped from decoded parameter objects at every
// nesting level (spec §4.9), the same defense-in-depth JSON APIs apply
// against prototype-pollution-style payloads even though Go's static
// structs aren't directly vulnerable to it.
var dangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// apiKeyed is implemented by every tool Input struct so wrap can
// authenticate without per-tool boilerplate.
type apiKeyed interface {
	apiKey() string
}

// validateEnvelope enforces spec §4.9's size/depth/dangerous-key checks
// against a tool call's raw arguments, returning a sanitized copy decoded
// into a fresh I. A nil or empty raw payload is valid (many tools take no
// parameters).
func validateEnvelope[I apiKeyed](raw json.RawMessage, in I) (I, error) {
	if len(raw) > maxRequestBytes {
		return in, errInvalidParams(fmt.Sprintf("request size %d bytes exceeds the %d byte limit", len(raw), maxRequestBytes))
	}
	if len(raw) == 0 {
		return in, nil
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return in, nil
	}
	if depth := jsonDepth(generic); depth > maxNestingDepth {
		return in, errInvalidParams(fmt.Sprintf("parameter nesting depth %d exceeds the %d level limit", depth, maxNestingDepth))
	}

	sanitized := stripDangerousKeys(generic)
	sanitizedJSON, err := json.Marshal(sanitized)
	if err != nil {
		return in, nil
	}
	var clean I
	if err := json.Unmarshal(sanitizedJSON, &clean); err != nil {
		return in, nil
	}
	return clean, nil
}

// jsonDepth reports the maximum nesting depth of a decoded JSON value,
// counting an object or array one level below the value it's nested in.
func jsonDepth(v any) int {
	switch t := v.(type) {
	case map[string]any:
		max := 0
		for _, child := range t {
			if d := jsonDepth(child); d > max {
				max = d
			}
		}
		return max + 1
	case []any:
		max := 0
		for _, child := range t {
			if d := jsonDepth(child); d > max {
				max = d
			}
		}
		return max + 1
	default:
		return 0
	}
}

// stripDangerousKeys returns a copy of v with any dangerousKeys entry
// removed from every object, recursively.
func stripDangerousKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		clean := make(map[string]any, len(t))
		for k, child := range t {
			if dangerousKeys[k] {
				continue
			}
			clean[k] = stripDangerousKeys(child)
		}
		return clean
	case []any:
		clean := make([]any, len(t))
		for i, child := range t {
			clean[i] = stripDangerousKeys(child)
		}
		return clean
	default:
		return v
	}
}

// wrap applies spec §4.9's envelope validation and auth/authz/per-user
// rate-limit gate in front of a thin tool handler. A call that carries no
// key skips auth entirely; a call that carries a key is always
// authenticated, so an unknown key is rejected even when no users are
// provisioned.
func wrap[I apiKeyed, O any](s *Server, perm auth.Permission, fn func(context.Context, I) (O, error)) func(context.Context, *mcp.CallToolRequest, I) (*mcp.CallToolResult, O, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, in I) (*mcp.CallToolResult, O, error) {
		var zero O

		if req != nil && req.Params != nil {
			clean, err := validateEnvelope(req.Params.Arguments, in)
			if err != nil {
				return nil, zero, err
			}
			in = clean
		}

		if s.deps.Auth != nil && in.apiKey() != "" {
			result := s.deps.Auth.Authenticate(in.apiKey())
			if result.Unauthorized {
				return nil, zero, errAuth("invalid or inactive API key")
			}
			if result.RateLimited {
				return nil, zero, errAuth("per-user rate limit exceeded")
			}
			if result.OK && !auth.Authorize(result.User, perm) {
				return nil, zero, errAuthz("user lacks required permission: " + string(perm))
			}
		}
		out, err := fn(ctx, in)
		return nil, out, err
	}
}
