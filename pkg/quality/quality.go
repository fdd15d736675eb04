// Package quality is the Quality Assessor (spec §4.4): a pure function over
// a parser.Result that produces a weighted five-dimension score, an outlier
// flag, and an ML-readiness decision. Nothing in this package touches disk,
// the network, or the clock — determinism (spec §4.4 "Determinism") is a
// design constraint, not an accident.
package quality

import (
	"math"
	"sort"

	"github.com/quantum-forge/orchestrator-core/pkg/parser"
)

// Dimension weights are asserted constants of the specification, never
// recomputed or tuned at runtime (spec §9 design note).
const (
	weightCompleteness = 0.25
	weightValidity     = 0.35
	weightConsistency  = 0.30
	weightUniqueness   = 0.10

	mlReadyThreshold = 0.80
	outlierZScore    = 3.0
	iqrMultiplier    = 1.5
)

var requiredFields = []string{"energy", "gap", "homo", "lumo"}
var optionalFields = []string{"dipole", "charges", "forces", "optimized_geometry"}

// Metrics is the Quality Assessor's output, ahead of any DataStore-shape
// concerns (entity_id assignment, timestamps — those are the Logging
// Emitter's job).
type Metrics struct {
	Completeness float64
	Validity     float64
	Consistency  float64
	Uniqueness   float64
	Overall      float64

	IsOutlier        bool
	IsSuspicious     bool
	HasMissingValues bool
	FailedValidation bool
	MissingFields    []string
}

// IsMLReady applies spec §4.4's decision rule.
func (m Metrics) IsMLReady() bool {
	return m.Overall >= mlReadyThreshold && !m.IsOutlier && !m.FailedValidation
}

// Assess scores result in isolation (uniqueness defaults to 1.0, spec §4.4)
// and against batch for duplicate/outlier detection, when a batch is
// available (e.g. a bulk submission processed together).
func Assess(result *parser.Result, batch []*parser.Result) *Metrics {
	m := &Metrics{Uniqueness: 1.0}

	present, missing := fieldPresence(result)
	m.MissingFields = missing
	m.HasMissingValues = len(missing) > 0
	m.Completeness = fraction(len(present), len(requiredFields)+len(optionalFields))

	validCount, checkedCount, anyRangeViolation := validity(result, present)
	if checkedCount > 0 {
		m.Validity = fraction(validCount, checkedCount)
	} else {
		m.Validity = 1.0
	}
	m.FailedValidation = anyRangeViolation

	satisfiedRules, totalRules := consistency(result)
	m.Consistency = fraction(satisfiedRules, totalRules)

	if len(batch) > 0 {
		m.Uniqueness = uniqueness(result, batch)
	}

	m.Overall = clamp01(weightCompleteness*m.Completeness +
		weightValidity*m.Validity +
		weightConsistency*m.Consistency +
		weightUniqueness*m.Uniqueness)

	m.IsOutlier = detectOutlier(result, batch)
	m.IsSuspicious = m.IsOutlier || m.HasMissingValues || anyRangeViolation

	return m
}

func fraction(count, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(count) / float64(total)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// fieldPresence reports which of the tracked fields (required+optional) are
// non-null in result, and which required+optional fields are missing.
func fieldPresence(r *parser.Result) (present []string, missing []string) {
	check := func(name string, ok bool) {
		if ok {
			present = append(present, name)
		} else {
			missing = append(missing, name)
		}
	}

	check("energy", r.Energy != nil)
	check("gap", r.Gap != nil)
	check("homo", r.Homo != nil)
	check("lumo", r.Lumo != nil)
	check("dipole", r.Dipole != nil)
	check("charges", len(r.Charges) > 0)
	check("forces", len(r.Forces) > 0)
	check("optimized_geometry", r.OptimizedGeometry != "")

	return present, missing
}

// validity applies the range constraints of spec §4.4 to every present
// field, returning how many passed out of how many were checked.
func validity(r *parser.Result, present []string) (valid, checked int, anyViolation bool) {
	inSet := func(name string) bool {
		for _, p := range present {
			if p == name {
				return true
			}
		}
		return false
	}

	mark := func(ok bool) {
		checked++
		if ok {
			valid++
		} else {
			anyViolation = true
		}
	}

	if inSet("energy") {
		mark(*r.Energy < 0)
	}
	if inSet("gap") {
		mark(*r.Gap > 0 && *r.Gap < 50)
	}
	if inSet("homo") {
		mark(*r.Homo >= -50 && *r.Homo <= 0)
	}
	if inSet("lumo") {
		mark(*r.Lumo >= -20 && *r.Lumo <= 20)
	}
	if inSet("dipole") {
		mark(*r.Dipole >= 0 && *r.Dipole <= 20)
	}
	if inSet("charges") {
		ok := true
		for _, c := range r.Charges {
			if math.Abs(c) > 2 {
				ok = false
				break
			}
		}
		mark(ok)
	}
	if inSet("forces") {
		ok := true
		for _, f := range r.Forces {
			if f < 0 || f > 100 {
				ok = false
				break
			}
		}
		mark(ok)
	}

	return valid, checked, anyViolation
}

// consistency applies the cross-field rules of spec §4.4.
func consistency(r *parser.Result) (satisfied, total int) {
	if r.Homo != nil && r.Lumo != nil {
		total++
		if *r.Homo < *r.Lumo {
			satisfied++
		}
	}
	if r.Gap != nil && r.Homo != nil && r.Lumo != nil {
		total++
		if math.Abs(*r.Gap-(*r.Lumo-*r.Homo)) < 0.01 {
			satisfied++
		}
	}
	if r.ConvergenceStatus == "converged" {
		total++
		if r.Energy != nil {
			satisfied++
		}
	}
	if total == 0 {
		return 1, 1
	}
	return satisfied, total
}

// uniqueness is 1 − duplicates/total within batch, where a duplicate is a
// result whose energy matches another to 6 decimal places (spec §4.4).
func uniqueness(result *parser.Result, batch []*parser.Result) float64 {
	if result.Energy == nil || len(batch) == 0 {
		return 1.0
	}
	total := len(batch)
	duplicates := 0
	for _, other := range batch {
		if other == result || other.Energy == nil {
			continue
		}
		if math.Abs(*other.Energy-*result.Energy) < 1e-6 {
			duplicates++
		}
	}
	return clamp01(1.0 - float64(duplicates)/float64(total))
}

// detectOutlier implements spec §4.4's rolling z-score test when a batch
// sample is available, falling back to the IQR(1.5) test, and finally to an
// absolute implausibility check when there is no sample at all.
func detectOutlier(result *parser.Result, batch []*parser.Result) bool {
	if result.Energy == nil {
		return false
	}
	energy := *result.Energy

	sample := energySample(batch)
	if len(sample) >= 2 {
		if zScoreOutlier(energy, sample) {
			return true
		}
		if iqrOutlier(energy, sample) {
			return true
		}
		return false
	}

	// No batch sample: fall back to an absolute implausibility bound.
	// xTB ground-state energies for molecules in scope never exceed this
	// magnitude; anything beyond it indicates a parsing or unit error.
	return energy > 0 || energy < -100000
}

func energySample(batch []*parser.Result) []float64 {
	sample := make([]float64, 0, len(batch))
	for _, r := range batch {
		if r != nil && r.Energy != nil {
			sample = append(sample, *r.Energy)
		}
	}
	return sample
}

func zScoreOutlier(v float64, sample []float64) bool {
	mean := meanOf(sample)
	sd := stddevOf(sample, mean)
	if sd == 0 {
		return false
	}
	return math.Abs((v-mean)/sd) > outlierZScore
}

func iqrOutlier(v float64, sample []float64) bool {
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		return false
	}
	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr
	return v < lower || v > upper
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevOf(values []float64, mean float64) float64 {
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// percentile uses linear interpolation between closest ranks over a
// pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
