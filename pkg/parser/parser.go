// Package parser implements the Parser Cascade (spec §4.3): an ordered list
// of Strategy implementations, each a forgiving attempt to pull a canonical
// result map out of whatever xTB actually produced. The shape — compiled-once
// regexes, graceful degradation to a terminal "unparseable" result instead of
// an error, diagnostics about what was (and wasn't) found — is grounded on
// the multi-strategy LLM response parser in
// pkg/agent/controller/react_parser.go.
package parser

import (
	"encoding/json"
)

// Result is the normalized output of the cascade (spec §4.3 canonical key set).
type Result struct {
	Energy            *float64
	HomoLumoGap       *float64
	Gap               *float64
	Homo              *float64
	Lumo              *float64
	Dipole            *float64
	Charges           []float64
	Forces            []float64
	OptimizedGeometry string
	ConvergenceStatus string
	AtomCount         int
	GradientNorm      *float64

	// HomoEstimated records whether Homo/Lumo were derived from Gap via the
	// −7.5 eV heuristic (spec §9 "HOMO/LUMO estimation") rather than reported
	// directly by xTB, so downstream ML consumers can filter them out.
	HomoEstimated bool

	// StrategyUsed names the Strategy that produced this result, empty for
	// the terminal unparseable case.
	StrategyUsed string

	// FoundSections mirrors react_parser.go's diagnostics map: which raw
	// fields the winning strategy actually observed, for troubleshooting a
	// cascade that fell through to a worse strategy than expected.
	FoundSections map[string]bool
}

// Unparseable reports whether the cascade produced nothing.
func (r *Result) Unparseable() bool {
	return r == nil || r.Energy == nil
}

// Strategy is one parsing approach in the cascade (spec §9 "Polymorphism
// over parser strategies").
type Strategy interface {
	Name() string
	TryParse(stdout []byte, workDir string) (*Result, bool)
}

// Cascade runs Strategies in order and stops at the first one that yields a
// result with a non-nil Energy (spec §4.3).
type Cascade struct {
	strategies []Strategy
}

// NewCascade builds the default cascade in the fixed order spec §4.3
// mandates: stdout-embedded JSON, xtbout.json on disk, JSON fragment
// extraction, then regex extraction.
func NewCascade() *Cascade {
	return &Cascade{
		strategies: []Strategy{
			stdoutJSONStrategy{},
			xtboutFileStrategy{},
			jsonFragmentStrategy{},
			regexStrategy{},
		},
	}
}

// NewCascadeWithStrategies builds a cascade from an explicit strategy list,
// for tests that need to isolate one strategy or reorder them.
func NewCascadeWithStrategies(strategies ...Strategy) *Cascade {
	return &Cascade{strategies: strategies}
}

// Parse runs the cascade over stdout and the job's working directory,
// returning the first strategy's successful result, or a terminal
// unparseable Result if none succeeded.
func (c *Cascade) Parse(stdout []byte, workDir string) *Result {
	for _, s := range c.strategies {
		if result, ok := s.TryParse(stdout, workDir); ok {
			result.StrategyUsed = s.Name()
			applyHomoLumoEstimation(result)
			return result
		}
	}
	return &Result{
		ConvergenceStatus: "unparseable",
		FoundSections:     map[string]bool{},
	}
}

// applyHomoLumoEstimation fills in Homo/Lumo from Gap when xTB reported only
// the gap (spec §9): homo = -7.5eV, lumo = homo + gap.
func applyHomoLumoEstimation(r *Result) {
	gap := r.Gap
	if gap == nil {
		gap = r.HomoLumoGap
	}
	if r.Homo != nil || gap == nil {
		return
	}
	homo := -7.5
	lumo := homo + *gap
	r.Homo = &homo
	r.Lumo = &lumo
	r.HomoEstimated = true
}

// canonicalFromMap builds a Result from a loosely-typed field map shared by
// the JSON-based strategies (stdout JSON, xtbout.json, JSON fragment).
func canonicalFromMap(m map[string]interface{}) *Result {
	r := &Result{FoundSections: map[string]bool{}}

	r.Energy = floatField(m, "energy", r.FoundSections)
	r.HomoLumoGap = floatField(m, "homo_lumo_gap", r.FoundSections)
	r.Gap = floatField(m, "gap", r.FoundSections)
	if r.Gap == nil {
		r.Gap = r.HomoLumoGap
	}
	r.Homo = floatField(m, "homo", r.FoundSections)
	r.Lumo = floatField(m, "lumo", r.FoundSections)
	r.Dipole = floatField(m, "dipole", r.FoundSections)
	r.GradientNorm = floatField(m, "gradient_norm", r.FoundSections)

	if v, ok := m["charges"]; ok {
		r.Charges = floatSlice(v)
		r.FoundSections["charges"] = true
	}
	if v, ok := m["forces"]; ok {
		r.Forces = floatSlice(v)
		r.FoundSections["forces"] = true
	}
	if v, ok := m["optimized_geometry"].(string); ok {
		r.OptimizedGeometry = v
		r.FoundSections["optimized_geometry"] = true
	}
	if v, ok := m["convergence_status"].(string); ok {
		r.ConvergenceStatus = v
		r.FoundSections["convergence_status"] = true
	}
	if v, ok := m["atom_count"]; ok {
		if n, ok := toFloat(v); ok {
			r.AtomCount = int(n)
			r.FoundSections["atom_count"] = true
		}
	}

	return r
}

func floatField(m map[string]interface{}, key string, found map[string]bool) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	found[key] = true
	return &f
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func floatSlice(v interface{}) []float64 {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		if f, ok := toFloat(item); ok {
			out = append(out, f)
		}
	}
	return out
}
