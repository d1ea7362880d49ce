package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/planerr"
)

// Emit renders a physical plan to SQL text. It is a pure function: no I/O,
// no panics. An incomplete or unconvertible tree (a shape ConvertPhysical
// never produces) surfaces as planerr.KindInternal rather than a panic,
// per spec.md §4.4 — internal-only, not part of the error taxonomy
// planner callers are expected to switch on.
func Emit(root *PhysicalNode) (string, error) {
	if root == nil {
		return "", planerr.Newf(planerr.KindInternal, "plan: Emit called on a nil physical tree")
	}

	cur := root
	var limitN *int
	var sortKeys []model.SortKey

	if cur.Kind == PhysicalLimit {
		n := cur.LimitN
		limitN = &n
		cur = cur.Input
	}
	if cur != nil && cur.Kind == PhysicalSort {
		sortKeys = cur.SortKeys
		cur = cur.Input
	}
	if cur == nil || cur.Kind != PhysicalProject {
		return "", planerr.Newf(planerr.KindInternal, "plan: Emit expected a Project node at this position, got %v", kindOf(cur))
	}
	cur = cur.Input
	if cur == nil || cur.Kind != PhysicalHashAggregate {
		return "", planerr.Newf(planerr.KindInternal, "plan: Emit expected a HashAggregate node at this position, got %v", kindOf(cur))
	}
	agg := cur

	fromClause, preds, err := buildRelation(agg.Input)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectList(agg))
	b.WriteString(" FROM ")
	b.WriteString(fromClause)

	if len(preds) > 0 {
		rendered := make([]string, len(preds))
		for i, p := range preds {
			expr, err := renderExpr(p)
			if err != nil {
				return "", err
			}
			rendered[i] = expr
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(rendered, " AND "))
	}

	if len(agg.GroupBy) > 0 {
		cols := make([]string, len(agg.GroupBy))
		for i, c := range agg.GroupBy {
			cols[i] = quoteQualified(c)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(cols, ", "))
	}

	if len(sortKeys) > 0 {
		parts := make([]string, len(sortKeys))
		for i, sk := range sortKeys {
			ref := sortKeyRef(sk.Column, agg)
			if sk.Desc {
				parts[i] = ref + " DESC"
			} else {
				parts[i] = ref + " ASC"
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if limitN != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*limitN))
	}

	return b.String(), nil
}

func kindOf(n *PhysicalNode) string {
	if n == nil {
		return "<nil>"
	}
	return n.Kind.String()
}

// buildRelation walks a Join/Filter/Scan subtree into a FROM clause and the
// flattened list of predicates pushed down anywhere within it.
func buildRelation(n *PhysicalNode) (string, []model.Expr, error) {
	if n == nil {
		return "", nil, planerr.Newf(planerr.KindInternal, "plan: Emit hit a nil relation node")
	}

	switch n.Kind {
	case PhysicalScan:
		return quoteIdent(n.Entity), nil, nil

	case PhysicalFilter:
		inner, preds, err := buildRelation(n.Input)
		if err != nil {
			return "", nil, err
		}
		return inner, append(preds, n.Predicates...), nil

	case PhysicalHashJoin, PhysicalNestedLoopJoin:
		leftSQL, leftPreds, err := buildRelation(n.Left)
		if err != nil {
			return "", nil, err
		}
		rightSQL, rightPreds, err := buildRelation(n.Right)
		if err != nil {
			return "", nil, err
		}
		conds := make([]string, len(n.On))
		for i, pair := range n.On {
			conds[i] = fmt.Sprintf("%s = %s", quoteQualified(pair.Left), quoteQualified(pair.Right))
		}
		sql := fmt.Sprintf("%s %s %s ON %s", leftSQL, n.JoinKind.String(), rightSQL, strings.Join(conds, " AND "))
		return sql, append(leftPreds, rightPreds...), nil

	default:
		return "", nil, planerr.Newf(planerr.KindInternal, "plan: Emit hit an unexpected relation node kind %v", n.Kind)
	}
}

// selectList renders an Aggregate's group-by columns followed by its
// aggregate expressions, e.g. `"products"."category_id", SUM("sales"."amount") AS "sales.total_revenue"`.
func selectList(agg *PhysicalNode) string {
	cols := make([]string, 0, len(agg.GroupBy)+len(agg.Aggregates))
	for _, g := range agg.GroupBy {
		cols = append(cols, quoteQualified(g))
	}
	for _, a := range agg.Aggregates {
		cols = append(cols, renderAggregate(a))
	}
	return strings.Join(cols, ", ")
}

func renderAggregate(a AggregateExpr) string {
	fn := strings.ToUpper(a.Aggregation)
	arg := "*"
	if a.SourceColumn != "" {
		arg = quoteQualified(a.SourceColumn)
	}
	return fmt.Sprintf("%s(%s) AS %s", fn, arg, quoteIdent(a.Output))
}

// sortKeyRef resolves a Sort key's column against the Aggregate's known
// outputs: a measure alias sorts by its output alias, anything else is
// treated as a qualified group-by column.
func sortKeyRef(col string, agg *PhysicalNode) string {
	for _, a := range agg.Aggregates {
		if a.Output == col {
			return quoteIdent(col)
		}
	}
	return quoteQualified(col)
}

// quoteQualified renders "entity.column" as `"entity"."column"`.
func quoteQualified(qualified string) string {
	entity, col, ok := strings.Cut(qualified, ".")
	if !ok {
		return quoteIdent(qualified)
	}
	return quoteIdent(entity) + "." + quoteIdent(col)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// renderExpr renders a model.Expr predicate to SQL text.
func renderExpr(e model.Expr) (string, error) {
	switch e.Kind {
	case model.ExprColumn:
		return quoteQualified(e.Column), nil

	case model.ExprLiteral:
		return renderLiteral(e.Literal), nil

	case model.ExprBinary:
		if e.Left == nil || e.Right == nil {
			return "", planerr.Newf(planerr.KindInternal, "plan: binary expr %q missing an operand", e.Op)
		}
		left, err := renderExpr(*e.Left)
		if err != nil {
			return "", err
		}
		right, err := renderExpr(*e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, sqlOp(e.Op), right), nil

	case model.ExprFunction:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			rendered, err := renderExpr(a)
			if err != nil {
				return "", err
			}
			args[i] = rendered
		}
		return fmt.Sprintf("%s(%s)", strings.ToUpper(e.FuncName), strings.Join(args, ", ")), nil

	case model.ExprCase:
		var b strings.Builder
		b.WriteString("CASE")
		for _, branch := range e.CaseBranches {
			when, err := renderExpr(*branch.When)
			if err != nil {
				return "", err
			}
			then, err := renderExpr(*branch.Then)
			if err != nil {
				return "", err
			}
			b.WriteString(" WHEN ")
			b.WriteString(when)
			b.WriteString(" THEN ")
			b.WriteString(then)
		}
		if e.CaseElse != nil {
			els, err := renderExpr(*e.CaseElse)
			if err != nil {
				return "", err
			}
			b.WriteString(" ELSE ")
			b.WriteString(els)
		}
		b.WriteString(" END")
		return b.String(), nil

	case model.ExprCast:
		if e.CastExpr == nil {
			return "", planerr.Newf(planerr.KindInternal, "plan: cast expr missing operand")
		}
		inner, err := renderExpr(*e.CastExpr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("CAST(%s AS %s)", inner, sqlType(e.CastTo)), nil

	default:
		return "", planerr.Newf(planerr.KindInternal, "plan: no SQL rendering for expr kind %v", e.Kind)
	}
}

func sqlOp(op string) string {
	switch op {
	case "and", "&&":
		return "AND"
	case "or", "||":
		return "OR"
	case "==":
		return "="
	default:
		return strings.ToUpper(op)
	}
}

func renderLiteral(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("'%v'", t)
	}
}

func sqlType(t model.DataType) string {
	switch t {
	case model.TypeString:
		return "TEXT"
	case model.TypeInteger:
		return "INTEGER"
	case model.TypeFloat:
		return "DOUBLE PRECISION"
	case model.TypeBoolean:
		return "BOOLEAN"
	case model.TypeDate:
		return "DATE"
	case model.TypeTimestamp:
		return "TIMESTAMP"
	case model.TypeJSON:
		return "JSON"
	default:
		return "TEXT"
	}
}
