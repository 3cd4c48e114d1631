// Package execplan schedules a flat list of workbook operations into ordered,
// batchable execution steps. Sheets are created before anything is written to
// them, static source data lands before any formula that reads it, formulas
// are written in dependency order across sheets, and named ranges register
// last.
package execplan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cellform/cellform/internal/errors"
	"github.com/cellform/cellform/internal/sheet"
)

// StepType identifies an execution stage. Stages always run in declaration
// order: create sheets, write source data, write formulas, register named
// ranges.
type StepType string

const (
	StepCreateSheets        StepType = "create_sheets"
	StepWriteSourceData     StepType = "write_source_data"
	StepWriteFormulas       StepType = "write_formulas"
	StepRegisterNamedRanges StepType = "register_named_ranges"
)

// Step is a batch of operations that an executor may apply together. Ops
// within a step are already ordered; TargetSheets lists the sheets the step
// touches, sorted for deterministic output.
type Step struct {
	Type         StepType
	Ops          []sheet.Op
	TargetSheets []string
}

// Plan is the scheduled form of a translated program. Steps are ordered and
// ready for sequential execution. MainSheet names the sheet holding the final
// output when known.
type Plan struct {
	Steps     []Step
	MainSheet string
}

// Build validates a flat operation list and assembles the execution plan.
// It fails with a PlanValidationError before constructing any step when the
// list declares duplicate sheet names, addresses a sheet that is never
// created, carries a formula whose ref names an unknown sheet, or contains a
// cycle in the cross-sheet formula dependencies.
func Build(ops []sheet.Op, mainSheet string) (*Plan, error) {
	if len(ops) == 0 {
		return &Plan{MainSheet: mainSheet}, nil
	}

	var (
		createOps  []sheet.CreateSheet
		valueOps   []sheet.SetValues
		formulaOps []sheet.SetFormula
		rangeOps   []sheet.NamedRange
	)
	for _, op := range ops {
		switch v := op.(type) {
		case sheet.CreateSheet:
			createOps = append(createOps, v)
		case sheet.SetValues:
			valueOps = append(valueOps, v)
		case sheet.SetFormula:
			formulaOps = append(formulaOps, v)
		case sheet.NamedRange:
			rangeOps = append(rangeOps, v)
		default:
			return nil, errors.NewPlanValidationError(fmt.Sprintf("unknown operation type %T", op))
		}
	}

	sheetNames := make(map[string]bool, len(createOps))
	var duplicates []string
	for _, op := range createOps {
		if sheetNames[op.Name] {
			duplicates = append(duplicates, op.Name)
			continue
		}
		sheetNames[op.Name] = true
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, errors.NewPlanValidationError("duplicate sheet names", dedupe(duplicates)...)
	}

	for _, op := range valueOps {
		if !sheetNames[op.Sheet] {
			return nil, errors.NewPlanValidationError("values target a sheet that is never created", op.Sheet)
		}
	}
	for _, op := range formulaOps {
		if !sheetNames[op.Sheet] {
			return nil, errors.NewPlanValidationError("formula targets a sheet that is never created", op.Sheet)
		}
		if op.Ref != "" && !sheetNames[op.Ref] {
			return nil, errors.NewPlanValidationError(
				fmt.Sprintf("formula on sheet %q references a sheet that is never created", op.Sheet), op.Ref)
		}
	}
	for _, op := range rangeOps {
		if !sheetNames[op.Sheet] {
			return nil, errors.NewPlanValidationError("named range targets a sheet that is never created", op.Sheet)
		}
	}

	var steps []Step
	if len(createOps) > 0 {
		batch := make([]sheet.Op, len(createOps))
		targets := make([]string, len(createOps))
		for i, op := range createOps {
			batch[i] = op
			targets[i] = op.Name
		}
		steps = append(steps, newStep(StepCreateSheets, batch, targets))
	}
	if len(valueOps) > 0 {
		batch := make([]sheet.Op, len(valueOps))
		targets := make([]string, len(valueOps))
		for i, op := range valueOps {
			batch[i] = op
			targets[i] = op.Sheet
		}
		steps = append(steps, newStep(StepWriteSourceData, batch, targets))
	}
	if len(formulaOps) > 0 {
		sorted, err := sortFormulas(formulaOps)
		if err != nil {
			return nil, err
		}
		batch := make([]sheet.Op, len(sorted))
		targets := make([]string, len(sorted))
		for i, op := range sorted {
			batch[i] = op
			targets[i] = op.Sheet
		}
		steps = append(steps, newStep(StepWriteFormulas, batch, targets))
	}
	if len(rangeOps) > 0 {
		batch := make([]sheet.Op, len(rangeOps))
		targets := make([]string, len(rangeOps))
		for i, op := range rangeOps {
			batch[i] = op
			targets[i] = op.Sheet
		}
		steps = append(steps, newStep(StepRegisterNamedRanges, batch, targets))
	}

	return &Plan{Steps: steps, MainSheet: mainSheet}, nil
}

func newStep(kind StepType, ops []sheet.Op, targets []string) Step {
	return Step{Type: kind, Ops: ops, TargetSheets: dedupe(targets)}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// sortFormulas orders formulas so that every formula on a sheet is written
// after the formulas on the sheets it reads from. Within a sheet the original
// order is preserved. Dependencies on sheets that carry no formulas (source
// sheets holding only static values) are already satisfied by the preceding
// write stage and do not constrain the order. Ties break lexicographically by
// sheet name so the plan is deterministic.
func sortFormulas(formulaOps []sheet.SetFormula) ([]sheet.SetFormula, error) {
	formulasBySheet := make(map[string][]sheet.SetFormula)
	deps := make(map[string]map[string]bool)
	for _, op := range formulaOps {
		if _, ok := formulasBySheet[op.Sheet]; !ok {
			formulasBySheet[op.Sheet] = nil
			deps[op.Sheet] = make(map[string]bool)
		}
		formulasBySheet[op.Sheet] = append(formulasBySheet[op.Sheet], op)
	}
	for _, op := range formulaOps {
		if op.Ref != "" && op.Ref != op.Sheet {
			if _, ok := formulasBySheet[op.Ref]; ok {
				deps[op.Sheet][op.Ref] = true
			}
		}
	}

	inDegree := make(map[string]int, len(formulasBySheet))
	for name := range formulasBySheet {
		inDegree[name] = len(deps[name])
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}

	sortedSheets := make([]string, 0, len(formulasBySheet))
	for len(queue) > 0 {
		sort.Strings(queue)
		name := queue[0]
		queue = queue[1:]
		sortedSheets = append(sortedSheets, name)

		for other, d := range deps {
			if d[name] {
				inDegree[other]--
				if inDegree[other] == 0 {
					queue = append(queue, other)
				}
			}
		}
	}

	if len(sortedSheets) < len(formulasBySheet) {
		var cycle []string
		for name := range formulasBySheet {
			if inDegree[name] > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, errors.NewPlanValidationError("circular formula dependencies between sheets", cycle...)
	}

	result := make([]sheet.SetFormula, 0, len(formulaOps))
	for _, name := range sortedSheets {
		result = append(result, formulasBySheet[name]...)
	}
	return result, nil
}

// Explain renders a human-readable summary of the plan.
func (p *Plan) Explain() string {
	if len(p.Steps) == 0 {
		return "empty execution plan (no operations)"
	}

	var numSheets, numValues, numFormulas, numRanges int
	for _, step := range p.Steps {
		switch step.Type {
		case StepCreateSheets:
			numSheets = len(step.Ops)
		case StepWriteSourceData:
			numValues = len(step.Ops)
		case StepWriteFormulas:
			numFormulas = len(step.Ops)
		case StepRegisterNamedRanges:
			numRanges = len(step.Ops)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Execution plan: %d steps\n", len(p.Steps))
	fmt.Fprintf(&b, "  sheets: %d, source writes: %d, formulas: %d, named ranges: %d\n",
		numSheets, numValues, numFormulas, numRanges)
	if p.MainSheet != "" {
		fmt.Fprintf(&b, "  main sheet: %s\n", p.MainSheet)
	}
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "%d. %s (%d ops on %s)\n",
			i+1, step.Type, len(step.Ops), strings.Join(step.TargetSheets, ", "))
	}
	return b.String()
}

type stepJSON struct {
	Type         StepType          `json:"type"`
	Ops          []json.RawMessage `json:"ops"`
	TargetSheets []string          `json:"target_sheets"`
}

type planJSON struct {
	Steps     []stepJSON `json:"steps"`
	MainSheet string     `json:"main_sheet,omitempty"`
}

// MarshalPlan serializes the plan to canonical JSON. Operations use the same
// tagged envelopes as sheet.MarshalOp, so a round trip preserves the plan
// exactly.
func MarshalPlan(p *Plan) ([]byte, error) {
	out := planJSON{Steps: make([]stepJSON, len(p.Steps)), MainSheet: p.MainSheet}
	for i, step := range p.Steps {
		enc := stepJSON{Type: step.Type, TargetSheets: step.TargetSheets}
		enc.Ops = make([]json.RawMessage, len(step.Ops))
		for j, op := range step.Ops {
			data, err := sheet.MarshalOp(op)
			if err != nil {
				return nil, fmt.Errorf("encoding step %d op %d: %w", i, j, err)
			}
			enc.Ops[j] = data
		}
		out.Steps[i] = enc
	}
	return json.Marshal(out)
}

// UnmarshalPlan reconstructs a plan from MarshalPlan output.
func UnmarshalPlan(data []byte) (*Plan, error) {
	var raw planJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding execution plan: %w", err)
	}
	p := &Plan{MainSheet: raw.MainSheet, Steps: make([]Step, len(raw.Steps))}
	for i, enc := range raw.Steps {
		step := Step{Type: enc.Type, TargetSheets: enc.TargetSheets}
		step.Ops = make([]sheet.Op, len(enc.Ops))
		for j, rawOp := range enc.Ops {
			op, err := sheet.UnmarshalOp(rawOp)
			if err != nil {
				return nil, fmt.Errorf("decoding step %d op %d: %w", i, j, err)
			}
			step.Ops[j] = op
		}
		p.Steps[i] = step
	}
	return p, nil
}
