package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-forge/orchestrator-core/pkg/parser"
)

func ptr(f float64) *float64 { return &f }

func fullResult() *parser.Result {
	return &parser.Result{
		Energy:            ptr(-76.26),
		Gap:               ptr(8.1),
		Homo:              ptr(-8.9),
		Lumo:              ptr(-0.8),
		Dipole:            ptr(1.85),
		Charges:           []float64{-0.4, 0.2, 0.2},
		Forces:            []float64{0.01, 0.02, 0.01},
		OptimizedGeometry: "3\nwater\nO 0 0 0\nH 0 0 1\nH 0 1 0\n",
		ConvergenceStatus: "converged",
	}
}

func TestAssessWellFormedResultIsMLReady(t *testing.T) {
	m := Assess(fullResult(), nil)

	assert.Equal(t, 1.0, m.Completeness)
	assert.Equal(t, 1.0, m.Validity)
	assert.Equal(t, 1.0, m.Consistency)
	assert.Equal(t, 1.0, m.Uniqueness)
	assert.InDelta(t, 1.0, m.Overall, 1e-9)
	assert.False(t, m.IsOutlier)
	assert.False(t, m.FailedValidation)
	assert.True(t, m.IsMLReady())
}

func TestAssessMissingOptionalFieldsLowersCompleteness(t *testing.T) {
	r := fullResult()
	r.Dipole = nil
	r.Charges = nil
	r.Forces = nil
	r.OptimizedGeometry = ""

	m := Assess(r, nil)
	assert.Less(t, m.Completeness, 1.0)
	assert.True(t, m.HasMissingValues)
	assert.Contains(t, m.MissingFields, "dipole")
}

func TestAssessInvalidEnergyFailsValidation(t *testing.T) {
	r := fullResult()
	positive := 5.0
	r.Energy = &positive

	m := Assess(r, nil)
	assert.True(t, m.FailedValidation)
	assert.Less(t, m.Validity, 1.0)
	assert.False(t, m.IsMLReady())
}

func TestAssessInconsistentHomoLumoLowersConsistency(t *testing.T) {
	r := fullResult()
	r.Homo = ptr(-1.0)
	r.Lumo = ptr(-2.0) // homo > lumo violates the ordering rule

	m := Assess(r, nil)
	assert.Less(t, m.Consistency, 1.0)
}

func TestOverallFormulaWeights(t *testing.T) {
	r := fullResult()
	m := Assess(r, nil)
	expected := 0.25*m.Completeness + 0.35*m.Validity + 0.30*m.Consistency + 0.10*m.Uniqueness
	assert.InDelta(t, clamp01(expected), m.Overall, 1e-9)
}

func TestUniquenessDetectsDuplicatesInBatch(t *testing.T) {
	a := fullResult()
	b := fullResult() // identical energy to a

	m := Assess(a, []*parser.Result{a, b})
	assert.Less(t, m.Uniqueness, 1.0)
}

func TestOutlierDetectedByZScore(t *testing.T) {
	batch := []*parser.Result{
		{Energy: ptr(-10.0)},
		{Energy: ptr(-10.1)},
		{Energy: ptr(-9.9)},
		{Energy: ptr(-10.05)},
	}
	outlier := &parser.Result{Energy: ptr(-1000.0)}

	m := Assess(outlier, batch)
	assert.True(t, m.IsOutlier)
}

func TestOutlierAbsoluteBoundWithoutBatch(t *testing.T) {
	implausible := &parser.Result{Energy: ptr(50.0)} // positive energy
	m := Assess(implausible, nil)
	assert.True(t, m.IsOutlier)
}

func TestIsMLReadyRequiresNonOutlierAndValid(t *testing.T) {
	m := &Metrics{Overall: 0.9, IsOutlier: true}
	require.False(t, m.IsMLReady())

	m2 := &Metrics{Overall: 0.79}
	require.False(t, m2.IsMLReady())

	m3 := &Metrics{Overall: 0.81}
	require.True(t, m3.IsMLReady())
}
