package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const tenantQuery = "data.analytics.tenant.allow"

// DefaultTenantPolicy grants an owner every listed action on resources they own and nothing else.
const DefaultTenantPolicy = `package analytics.tenant

default allow := false

owner_actions := {"app.read", "apikey.revoke", "apikey.regenerate", "analytics.query"}

allow if {
	input.principal.user_id != ""
	input.resource.owner_id == input.principal.user_id
	owner_actions[input.action]
}
`

// OPAEvaluator answers tenant authorization questions with a prepared Rego query.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles modules (DefaultTenantPolicy when none are given) and prepares the allow query.
func NewOPAEvaluator(ctx context.Context, modules ...string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = []string{DefaultTenantPolicy}
	}
	files := make(map[string]string, len(modules))
	for i, m := range modules {
		files[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(files)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	pq, err := rego.New(rego.Query(tenantQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare query: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// Allow evaluates req. Undefined results deny.
func (e *OPAEvaluator) Allow(ctx context.Context, req Request) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(req)))
	if err != nil {
		return false, fmt.Errorf("eval tenant policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck evaluates a known-allowed request against the prepared policy.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	ok, err := e.Allow(ctx, Request{
		PrincipalUserID: "health",
		Action:          ActionReadApp,
		ResourceType:    "app",
		ResourceOwnerID: "health",
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("tenant policy denied its own health probe")
	}
	return nil
}

func buildInput(req Request) map[string]interface{} {
	return map[string]interface{}{
		"action": string(req.Action),
		"principal": map[string]interface{}{
			"user_id": req.PrincipalUserID,
		},
		"resource": map[string]interface{}{
			"type":     req.ResourceType,
			"id":       req.ResourceID,
			"owner_id": req.ResourceOwnerID,
		},
	}
}
