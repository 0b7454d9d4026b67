package engine

import "context"

// Action names an owner operation subject to tenant authorization.
type Action string

const (
	ActionReadApp       Action = "app.read"
	ActionRevokeKey     Action = "apikey.revoke"
	ActionRegenerateKey Action = "apikey.regenerate"
	ActionQueryEvents   Action = "analytics.query"
)

// Request is one authorization question: may the principal act on a resource owned by ResourceOwnerID.
type Request struct {
	PrincipalUserID string
	Action          Action
	ResourceType    string
	ResourceID      string
	ResourceOwnerID string
}

// Authorizer decides tenant access. A false result must be reported to clients as not found.
type Authorizer interface {
	Allow(ctx context.Context, req Request) (bool, error)
}
