package status

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/conveyorhq/conveyor/internal/registry"
)

// celFilter wraps a compiled CEL program evaluated per feature for filtered
// listings. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("stage", cel.StringType),
		cel.Variable("batch_id", cel.StringType),
		cel.Variable("shard_key", cel.StringType),
		cel.Variable("registered_at_ms", cel.IntType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a feature. When disabled,
// returns true.
func (f celFilter) Eval(feat registry.Feature) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"id":               feat.ID,
		"stage":            feat.StageName,
		"batch_id":         feat.BatchID,
		"shard_key":        feat.ShardKey,
		"registered_at_ms": feat.CreatedAtMs,
		"now_ms":           time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
