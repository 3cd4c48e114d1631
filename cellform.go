// Package cellform compiles dataframe-style transformation pipelines into
// spreadsheet formula programs. This package is the sole public API for the
// library.
//
// A pipeline is built from Operation constructors (NewSource, NewFilter,
// NewGroupBy, ...) and Expression builders (Col, Lit, And, ...), wrapped in a
// LogicalPlan, and compiled to an ExecutionPlan of batched workbook
// operations:
//
//	src := cellform.NewSource("people", []string{"name", "age"}, data)
//	flt, _ := cellform.NewFilter(src, cellform.Col("age").Gt(cellform.Lit(30)))
//	lp, _ := cellform.NewLogicalPlan(flt)
//	ep, _ := cellform.Compile(lp)
package cellform

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cellform/cellform/internal/config"
	"github.com/cellform/cellform/internal/execplan"
	"github.com/cellform/cellform/internal/expr"
	"github.com/cellform/cellform/internal/optimizer"
	"github.com/cellform/cellform/internal/plan"
	"github.com/cellform/cellform/internal/rows"
	"github.com/cellform/cellform/internal/sheet"
	"github.com/cellform/cellform/internal/translator"
	"github.com/cellform/cellform/internal/version"
)

// Expression AST surface.
type (
	Expr        = expr.Expr
	ColumnExpr  = expr.ColumnExpr
	LiteralExpr = expr.LiteralExpr
	BinaryExpr  = expr.BinaryExpr
	UnaryExpr   = expr.UnaryExpr
	CallExpr    = expr.CallExpr
)

// Pipeline surface.
type (
	Operation   = plan.Operation
	LogicalPlan = plan.LogicalPlan
	Relation    = plan.Relation
	Rows        = rows.Rows
	SortKey     = plan.SortKey
	Agg         = plan.Agg
	WindowSpec  = plan.WindowSpec
	JoinType    = plan.JoinType
	LimitEnd    = plan.LimitEnd
)

// Output surface.
type (
	Config          = config.Config
	SheetOp         = sheet.Op
	Range           = sheet.Range
	TranslateResult = translator.Result
	ExecutionPlan   = execplan.Plan
	ExecutionStep   = execplan.Step
)

// Join types.
const (
	JoinInner = plan.JoinInner
	JoinLeft  = plan.JoinLeft
	JoinRight = plan.JoinRight
	JoinOuter = plan.JoinOuter
)

// Limit ends.
const (
	Head = plan.Head
	Tail = plan.Tail
)

// Sort directions.
const (
	Asc  = plan.Asc
	Desc = plan.Desc
)

// Col references a column by name.
func Col(name string) *ColumnExpr { return expr.Col(name) }

// Lit wraps a literal value.
func Lit(value any) *LiteralExpr { return expr.Lit(value) }

// And combines two predicates with logical AND.
func And(left, right Expr) *BinaryExpr { return expr.And(left, right) }

// Or combines two predicates with logical OR.
func Or(left, right Expr) *BinaryExpr { return expr.Or(left, right) }

// Not negates a predicate.
func Not(operand Expr) *UnaryExpr { return expr.Not(operand) }

// Call builds a named function call expression.
func Call(fn string, args ...Expr) *CallExpr { return expr.NewCall(fn, args...) }

// Operation constructors. Each validates arity and, when the input schema is
// known, every referenced column.
var (
	NewSource     = plan.NewSource
	NewSelect     = plan.NewSelect
	NewFilter     = plan.NewFilter
	NewJoin       = plan.NewJoin
	NewGroupBy    = plan.NewGroupBy
	NewAggregate  = plan.NewAggregate
	NewSort       = plan.NewSort
	NewLimit      = plan.NewLimit
	NewWithColumn = plan.NewWithColumn
	NewUnion      = plan.NewUnion
	NewPivot      = plan.NewPivot
	NewMelt       = plan.NewMelt
	NewWindow     = plan.NewWindow
)

// NewLogicalPlan wraps an operation tree into a plan.
func NewLogicalPlan(root Operation) (*LogicalPlan, error) {
	return plan.NewLogicalPlan(root)
}

// MarshalPlan serializes a plan to canonical versioned JSON.
func MarshalPlan(p *LogicalPlan) ([]byte, error) { return plan.MarshalPlan(p) }

// UnmarshalPlan reconstructs a plan from canonical JSON.
func UnmarshalPlan(data []byte) (*LogicalPlan, error) { return plan.UnmarshalPlan(data) }

// SourceFromRecord builds a Source operation from an Arrow record, taking the
// schema from the record's column names.
func SourceFromRecord(sourceID string, rec arrow.Record) (*plan.Source, error) {
	data, schema, err := rows.FromRecord(rec)
	if err != nil {
		return nil, err
	}
	return plan.NewSource(sourceID, schema, data), nil
}

// Evaluate executes a pipeline eagerly over in-memory source data. Intended
// for debugging and for checking a pipeline against its compiled form on
// small inputs.
func Evaluate(p *LogicalPlan) (*Relation, error) {
	return plan.Evaluate(p.Root())
}

// Optimize rewrites a plan using the passes enabled in the global config.
func Optimize(p *LogicalPlan) (*LogicalPlan, error) {
	return OptimizeWithConfig(config.GetGlobalConfig(), p)
}

// OptimizeWithConfig rewrites a plan using the passes enabled in cfg. Passes
// run in a fixed order regardless of configuration: predicate pushdown,
// projection pushdown, fusion, simplification.
func OptimizeWithConfig(cfg Config, p *LogicalPlan) (*LogicalPlan, error) {
	return optimizer.NewWithRules(enabledRules(cfg)...).Optimize(p)
}

func enabledRules(cfg Config) []optimizer.Rule {
	var rules []optimizer.Rule
	if cfg.PredicatePushdown {
		rules = append(rules, &optimizer.PredicatePushdownRule{})
	}
	if cfg.ProjectionPushdown {
		rules = append(rules, &optimizer.ProjectionPushdownRule{})
	}
	if cfg.Fusion {
		rules = append(rules, &optimizer.FusionRule{})
	}
	if cfg.Simplification {
		rules = append(rules, &optimizer.SimplificationRule{})
	}
	return rules
}

// Translate lowers a plan to a flat list of workbook operations using the
// global config. The plan is not optimized first; use Compile for the full
// pipeline.
func Translate(p *LogicalPlan) (*TranslateResult, error) {
	return translator.New().Translate(p)
}

// TranslateWithConfig lowers a plan using an explicit config.
func TranslateWithConfig(cfg Config, p *LogicalPlan) (*TranslateResult, error) {
	return translator.NewWithConfig(cfg).Translate(p)
}

// TranslateWithData lowers a plan with source rows resolved from data by
// source id, taking precedence over rows embedded in Source nodes. Canonical
// serialization drops source data, so a plan rebuilt by UnmarshalPlan is
// translated this way.
func TranslateWithData(p *LogicalPlan, data map[string]Rows) (*TranslateResult, error) {
	return translator.New().TranslateWithData(p, data)
}

// Schedule batches a translated operation list into ordered execution steps.
func Schedule(res *TranslateResult) (*ExecutionPlan, error) {
	return execplan.Build(res.Ops, res.MainSheet)
}

// Compile runs the full pipeline: optimize, translate, schedule. It uses the
// global config.
func Compile(p *LogicalPlan) (*ExecutionPlan, error) {
	return CompileWithConfig(config.GetGlobalConfig(), p)
}

// CompileWithConfig runs the full pipeline with an explicit config.
func CompileWithConfig(cfg Config, p *LogicalPlan) (*ExecutionPlan, error) {
	optimized, err := OptimizeWithConfig(cfg, p)
	if err != nil {
		return nil, err
	}
	res, err := TranslateWithConfig(cfg, optimized)
	if err != nil {
		return nil, err
	}
	return execplan.Build(res.Ops, res.MainSheet)
}

// NewConfig returns a config populated with defaults.
func NewConfig() Config { return config.NewConfig() }

// SetGlobalConfig installs cfg as the process-wide default used by Compile,
// Optimize and Translate.
func SetGlobalConfig(cfg Config) { config.SetGlobalConfig(cfg) }

// GetGlobalConfig returns the process-wide default config.
func GetGlobalConfig() Config { return config.GetGlobalConfig() }

// Version returns the library version string.
func Version() string { return version.Version }
