package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/xpbd/internal/ir"
)

// Predicate is a node of a WHERE tree: Equals, Compare or And.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose Field equals Value. IRNull matches NULL.
type Equals struct {
	Field string
	Value ir.IRValue
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare matches rows where Field Op Value holds. Value is a string, an
// int64 or a float64.
type Compare struct {
	Field string
	Op    Op
	Value any
}

// And matches rows satisfying every predicate.
type And struct {
	Predicates []Predicate
}

func (Equals) predicateNode() {}

func (Compare) predicateNode() {}

func (And) predicateNode() {}

// operators in match order at one position: two-character operators first.
var operators = []Op{OpLe, OpGe, OpNe, OpEq, OpLt, OpGt}

// ParseFilter parses expressions of the form field<op>value and joins them
// with And. Values parse as integers, then true or false, then floats; anything
// else is a string, with one pair of surrounding quotes stripped.
//
//	ParseFilter([]string{"actor=rope", "step>=10"})
//
// Returns nil for no expressions.
func ParseFilter(exprs []string) (Predicate, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	var preds []Predicate
	for _, expr := range exprs {
		p, err := parseExpr(expr)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Predicates: preds}, nil
}

func parseExpr(expr string) (Predicate, error) {
	// The leftmost operator splits the expression, so values may contain
	// operator characters.
	for i := 0; i < len(expr); i++ {
		for _, op := range operators {
			if !strings.HasPrefix(expr[i:], string(op)) {
				continue
			}
			field := strings.TrimSpace(expr[:i])
			raw := strings.TrimSpace(expr[i+len(op):])
			if field == "" {
				return nil, fmt.Errorf("filter %q: missing field", expr)
			}
			if raw == "" {
				return nil, fmt.Errorf("filter %q: missing value", expr)
			}
			return predicateFor(field, op, raw), nil
		}
	}
	return nil, fmt.Errorf("filter %q: no operator (want one of = != < <= > >=)", expr)
}

func predicateFor(field string, op Op, raw string) Predicate {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if op == OpEq {
			return Equals{Field: field, Value: ir.IRInt(n)}
		}
		return Compare{Field: field, Op: op, Value: n}
	}
	if (raw == "true" || raw == "false") && op == OpEq {
		return Equals{Field: field, Value: ir.IRBool(raw == "true")}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Compare{Field: field, Op: op, Value: f}
	}
	s := raw
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	if op == OpEq {
		return Equals{Field: field, Value: ir.IRString(s)}
	}
	return Compare{Field: field, Op: op, Value: s}
}
