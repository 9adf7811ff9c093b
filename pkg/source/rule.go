package source

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/helmfile2compose/kubernetes2simple/pkg/expr"
)

// Rule maps a CEL match expression to a [Mode].
//
// The expressions have access to variables:
//   - `files` (list<string>): top-level file paths in the directory
//   - `dir` (string): the directory being classified
//
// and must return a boolean, e.g.:
//   - files.exists(f, pathBase(f) in ["Chart.yaml", "Chart.yml"])
//   - files.exists(f, pathExt(f) in [".yaml", ".yml"] && hasRootField(f, "kind"))
type Rule struct {
	matchProgram cel.Program

	// Match is the CEL expression evaluated against the file listing.
	Match string

	// Mode is the classification produced when this rule matches.
	Mode Mode
}

// NewRule creates a new rule for the given mode and match expression.
func NewRule(mode Mode, match string) (*Rule, error) {
	r := &Rule{
		Match: match,
		Mode:  mode,
	}
	if err := r.CompileMatch(); err != nil {
		return nil, fmt.Errorf("rule %q: %w", match, err)
	}

	return r, nil
}

// MustNewRule creates a new rule and panics if there's an error.
func MustNewRule(mode Mode, match string) *Rule {
	r, err := NewRule(mode, match)
	if err != nil {
		panic(err)
	}

	return r
}

// CompileMatch compiles the rule's match expression into a CEL program.
func (r *Rule) CompileMatch() error {
	if r.matchProgram != nil {
		return nil
	}

	env, err := expr.CreateEnvironment()
	if err != nil {
		return fmt.Errorf("create CEL environment: %w", err)
	}

	program, err := env.Compile(r.Match)
	if err != nil {
		return fmt.Errorf("compile match expression: %w", err)
	}

	r.matchProgram = program

	return nil
}

// MatchFiles evaluates the rule against a directory's file collection.
func (r *Rule) MatchFiles(dirPath string, files []string) bool {
	if r.matchProgram == nil {
		panic(errors.New("rule missing a match expression"))
	}

	result, _, err := r.matchProgram.Eval(map[string]any{
		"files": files,
		"dir":   dirPath,
	})
	if err != nil {
		// If evaluation fails, consider it a non-match.
		return false
	}

	matched, ok := result.Value().(bool)

	return ok && matched
}
