package models

import "time"

// Molecule is deduplicated by canonical identifier (spec §3, "Molecule").
// Here the molecule name doubles as the SMILES proxy, per spec §4.8.
type Molecule struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	SMILES    string    `json:"smiles"`
	Formula   string    `json:"formula,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ConvergenceStatus is the xTB convergence outcome recorded on a Calculation.
type ConvergenceStatus string

// Allowed convergence statuses (spec §3, "Calculation").
const (
	ConvergenceConverged    ConvergenceStatus = "converged"
	ConvergenceNotConverged ConvergenceStatus = "not_converged"
	ConvergenceError        ConvergenceStatus = "error"
)

// Calculation is one successful run against one molecule (spec §3, "Calculation").
type Calculation struct {
	ID                    int64             `json:"id,omitempty"`
	MoleculeID            int64             `json:"molecule_id"`
	Energy                float64           `json:"energy"`
	Homo                  float64           `json:"homo"`
	Lumo                  float64           `json:"lumo"`
	Gap                   float64           `json:"gap"`
	Dipole                float64           `json:"dipole"`
	ExecutionTimeSeconds  float64           `json:"execution_time_seconds"`
	XTBVersion            string            `json:"xtb_version"`
	Method                string            `json:"method"`
	ConvergenceStatus     ConvergenceStatus `json:"convergence_status"`
	QualityScore          float64           `json:"quality_score"`
	IsMLReady             bool              `json:"is_ml_ready"`
	CreatedAt             time.Time         `json:"created_at,omitempty"`
	UpdatedAt             time.Time         `json:"updated_at,omitempty"`
}

// QualityMetrics is a per-calculation scoring record (spec §3, "QualityMetrics").
type QualityMetrics struct {
	EntityType    string   `json:"entity_type"`
	EntityID      int64    `json:"entity_id"`
	Completeness  float64  `json:"completeness_score"`
	Validity      float64  `json:"validity_score"`
	Consistency   float64  `json:"consistency_score"`
	Uniqueness    float64  `json:"uniqueness_score"`
	Overall       float64  `json:"overall_quality_score"`

	IsOutlier         bool     `json:"is_outlier"`
	IsSuspicious      bool     `json:"is_suspicious"`
	HasMissingValues  bool     `json:"has_missing_values"`
	FailedValidation  bool     `json:"failed_validation"`
	MissingFields     []string `json:"missing_fields,omitempty"`

	DataSource         string    `json:"data_source"`
	ValidationMethod   string    `json:"validation_method"`
	ValidationTimestamp time.Time `json:"validation_timestamp"`
}

// IsMLReady applies the rule from spec §4.4: overall >= 0.80 AND not an
// outlier AND validation did not fail.
func (q *QualityMetrics) IsMLReady() bool {
	return q.Overall >= 0.80 && !q.IsOutlier && !q.FailedValidation
}

// Lineage is per-calculation provenance (spec §3, "Lineage").
type Lineage struct {
	EntityType            string         `json:"entity_type"`
	EntityID              int64          `json:"entity_id"`
	SourceType            string         `json:"source_type"`
	SourceReference       string         `json:"source_reference"`
	SoftwareVersion       string         `json:"software_version"`
	AlgorithmVersion      string         `json:"algorithm_version"`
	ProcessingParameters  map[string]any `json:"processing_parameters,omitempty"`
	ApprovedForML         bool           `json:"approved_for_ml"`
}
