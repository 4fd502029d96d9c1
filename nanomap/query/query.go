// Package query provides the composable document filters used to look up
// referenced documents. A Query is opaque to the store: the store only applies
// Match to candidate documents.
package query

import (
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/arthur-debert/nanomap/types"
)

// Query is a predicate over documents
type Query interface {
	Match(doc types.Document) (bool, error)
	String() string
}

type allQuery struct{}

// All matches every document
func All() Query { return allQuery{} }

func (allQuery) Match(types.Document) (bool, error) { return true, nil }
func (allQuery) String() string                     { return "all()" }

// fieldQuery matches when doc[field] equals one of values
type fieldQuery struct {
	field  string
	values []string
	raw    []interface{}
}

// Eq matches documents whose field equals value
func Eq(field string, value interface{}) Query {
	return In(field, value)
}

// In matches documents whose field equals any of values.
//
// Values are compared by their Normalize form, not by Go equality: the string
// "1" matches the number 1, integral floats match ints, and strings that parse
// as RFC3339 or "2006-01-02 15:04:05" timestamps are compared as times. Opaque
// ids that happen to look like numbers or timestamps match their coerced
// counterparts.
func In(field string, values ...interface{}) Query {
	q := &fieldQuery{field: field, raw: values, values: make([]string, len(values))}
	for i, v := range values {
		q.values[i] = valueToString(v)
	}
	return q
}

// ByID matches documents whose identifier is one of ids, with the value
// coercion described on In
func ByID(ids ...interface{}) Query {
	return In(types.IDField, ids...)
}

func (q *fieldQuery) Match(doc types.Document) (bool, error) {
	docValue, exists := lookupPath(doc, q.field)
	if !exists {
		return false, nil
	}
	docStr := valueToString(docValue)
	for _, v := range q.values {
		if docStr == v {
			return true, nil
		}
	}
	return false, nil
}

func (q *fieldQuery) String() string {
	if len(q.raw) == 1 {
		return fmt.Sprintf("%s == %v", q.field, q.raw[0])
	}
	return fmt.Sprintf("%s in %v", q.field, q.raw)
}

// exprQuery evaluates a compiled expr-lang program against each document
type exprQuery struct {
	expression string
	env        map[string]interface{}
	program    *exprvm.Program
}

// Expr compiles a boolean filter expression. Document fields are available by
// name, the whole document as "doc", and env entries override both.
func Expr(expression string, env map[string]interface{}) (Query, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("%w: expression must not be empty", types.ErrInvalidArgument)
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]interface{}{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", expression, err)
	}
	return &exprQuery{expression: expression, env: env, program: program}, nil
}

func (q *exprQuery) Match(doc types.Document) (bool, error) {
	env := make(map[string]interface{}, len(doc)+len(q.env)+1)
	for k, v := range doc {
		env[k] = v
	}
	env["doc"] = map[string]interface{}(doc)
	for k, v := range q.env {
		env[k] = v
	}
	out, err := exprlang.Run(q.program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter %q: %w", q.expression, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, expected bool", q.expression, out)
	}
	return matched, nil
}

func (q *exprQuery) String() string {
	return q.expression
}

type andQuery []Query

// And matches documents matching every query
func And(queries ...Query) Query { return andQuery(queries) }

func (q andQuery) Match(doc types.Document) (bool, error) {
	for _, sub := range q {
		ok, err := sub.Match(doc)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (q andQuery) String() string { return join("and", q) }

type orQuery []Query

// Or matches documents matching at least one query
func Or(queries ...Query) Query { return orQuery(queries) }

func (q orQuery) Match(doc types.Document) (bool, error) {
	for _, sub := range q {
		ok, err := sub.Match(doc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (q orQuery) String() string { return join("or", q) }

func join(op string, qs []Query) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

// lookupPath resolves dotted paths through nested documents
func lookupPath(doc types.Document, path string) (interface{}, bool) {
	if v, ok := doc[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	switch nested := doc[head].(type) {
	case types.Document:
		return lookupPath(nested, rest)
	case map[string]interface{}:
		return lookupPath(types.Document(nested), rest)
	default:
		return nil, false
	}
}
