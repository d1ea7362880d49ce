// Package model defines the planner's inbound data types: the Model the
// caller's DSL/AST layer produces, the Report a caller wants compiled to
// SQL, and the closed Expr tagged sum used by both filters and measure
// expressions. Types here mirror the teacher's composition-over-polymorphism
// style (a Kind discriminant plus kind-specific fields) rather than
// interface{} values, generalized from Schema.org action typing to a truly
// closed sum per the planner's Design Notes.
package model

// EntityKind enumerates the roles an Entity can play in the graph.
type EntityKind int

const (
	EntitySource EntityKind = iota
	EntityFact
	EntityDimension
	EntityCalendar
)

func (k EntityKind) String() string {
	switch k {
	case EntitySource:
		return "Source"
	case EntityFact:
		return "Fact"
	case EntityDimension:
		return "Dimension"
	case EntityCalendar:
		return "Calendar"
	default:
		return "Unknown"
	}
}

// DataType enumerates the column data types the graph understands.
type DataType int

const (
	TypeString DataType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeDate
	TypeTimestamp
	TypeJSON
	TypeUnknown
)

func (t DataType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeInteger:
		return "Integer"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	case TypeDate:
		return "Date"
	case TypeTimestamp:
		return "Timestamp"
	case TypeJSON:
		return "Json"
	default:
		return "Unknown"
	}
}

// ColumnDef describes one column of an EntityDef as supplied by the caller.
type ColumnDef struct {
	Name     string
	DataType DataType
	Nullable bool
	// DerivedFrom lists the qualified "entity.column" sources this column
	// is computed from, if any, producing DERIVED_FROM edges.
	DerivedFrom []string
}

// MeasureDef describes one measure owned by an EntityDef.
type MeasureDef struct {
	Name          string
	Aggregation   string // "sum", "count", "avg", "min", "max", ...
	SourceColumn  string // optional; empty if Expression is set instead
	Expression    string // optional raw expression text, stored as-is; not parsed, so it yields no DEPENDS_ON edges
}

// JoinDef is an explicit model-level join declaration between two entities,
// supplementing joins inferred from REFERENCES edges.
type JoinDef struct {
	FromEntity  string
	ToEntity    string
	FromColumn  string
	ToColumn    string
	Cardinality string // "1:1", "1:N", "N:1", "N:N", "" = unknown
}

// EntityDef describes one entity (source table, fact, dimension) as
// supplied by the caller's Model.
type EntityDef struct {
	Name         string
	Kind         EntityKind
	PhysicalName string
	Schema       string
	Columns      []ColumnDef
	Measures     []MeasureDef
	Joins        []JoinDef
	Metadata     map[string]string
}

// CalendarDef describes a calendar entity and its ordered grain levels
// (e.g. day -> week -> month).
type CalendarDef struct {
	Name         string
	PhysicalName string
	DateColumn   string
	Grains       []string
	Metadata     map[string]string
}

// Defaults holds model-wide configuration independent of any one entity;
// it participates in model_hash alongside Calendars.
type Defaults struct {
	Schema string
}

// Model is the planner's sole structured input besides a Report: the
// typed record set the (out-of-scope) DSL/AST layer produces.
type Model struct {
	Defaults  Defaults
	Entities  []EntityDef
	Calendars []CalendarDef
}

// EntityByName returns the entity definition named name, if present.
func (m *Model) EntityByName(name string) (EntityDef, bool) {
	for _, e := range m.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return EntityDef{}, false
}

// --- Report -----------------------------------------------------------

// SortKey orders a result column ascending or descending.
type SortKey struct {
	Column string
	Desc   bool
}

// GroupRef is either a bare column reference or a named drill path
// reference into a calendar's grain levels.
type GroupRef struct {
	Column    string // set when this is a plain column group
	DrillPath string // set when this names a calendar drill path
	Calendar  string // calendar the drill path belongs to, if DrillPath is set
}

// Report is the caller's request: which tables to start from, how to
// filter/group/show/sort/limit the result.
type Report struct {
	From    []string
	Filters []Expr
	Group   []GroupRef
	Show    []string // measure qualified names
	Sort    []SortKey
	Limit   *int
}

// --- Expr: closed tagged sum -------------------------------------------

// ExprKind discriminates the Expr variants. There is no interface{}
// polymorphism here: every Expr carries exactly one active variant's
// fields, selected by Kind.
type ExprKind int

const (
	ExprColumn ExprKind = iota
	ExprLiteral
	ExprBinary
	ExprFunction
	ExprCase
	ExprCast
)

// CaseBranch is one WHEN/THEN arm of an ExprCase.
type CaseBranch struct {
	When *Expr
	Then *Expr
}

// Expr is the closed expression sum used for Report filters and (via the
// plan package) logical/physical plan predicates. Exactly one set of fields is
// meaningful per Kind:
//
//	ExprColumn:   Column
//	ExprLiteral:  Literal
//	ExprBinary:   Op, Left, Right
//	ExprFunction: FuncName, Args
//	ExprCase:     CaseBranches, CaseElse
//	ExprCast:     CastTo, CastExpr
type Expr struct {
	Kind ExprKind

	Column string

	Literal interface{}

	Op    string
	Left  *Expr
	Right *Expr

	FuncName string
	Args     []Expr

	CaseBranches []CaseBranch
	CaseElse     *Expr

	CastTo   DataType
	CastExpr *Expr
}

// Col builds an ExprColumn referencing a fully qualified "entity.column" name.
func Col(qualified string) Expr { return Expr{Kind: ExprColumn, Column: qualified} }

// Lit builds an ExprLiteral.
func Lit(v interface{}) Expr { return Expr{Kind: ExprLiteral, Literal: v} }

// Bin builds an ExprBinary for a comparison or logical operator.
func Bin(op string, left, right Expr) Expr {
	return Expr{Kind: ExprBinary, Op: op, Left: &left, Right: &right}
}

// Fn builds an ExprFunction call.
func Fn(name string, args ...Expr) Expr {
	return Expr{Kind: ExprFunction, FuncName: name, Args: args}
}

// ReferencedColumns returns every entity-qualified column name appearing in
// e, used to classify a filter's referenced_tables during DP optimization.
func (e Expr) ReferencedColumns() []string {
	var out []string
	e.walkColumns(func(col string) { out = append(out, col) })
	return out
}

func (e Expr) walkColumns(visit func(string)) {
	switch e.Kind {
	case ExprColumn:
		visit(e.Column)
	case ExprBinary:
		if e.Left != nil {
			e.Left.walkColumns(visit)
		}
		if e.Right != nil {
			e.Right.walkColumns(visit)
		}
	case ExprFunction:
		for _, a := range e.Args {
			a.walkColumns(visit)
		}
	case ExprCase:
		for _, b := range e.CaseBranches {
			if b.When != nil {
				b.When.walkColumns(visit)
			}
			if b.Then != nil {
				b.Then.walkColumns(visit)
			}
		}
		if e.CaseElse != nil {
			e.CaseElse.walkColumns(visit)
		}
	case ExprCast:
		if e.CastExpr != nil {
			e.CastExpr.walkColumns(visit)
		}
	}
}
