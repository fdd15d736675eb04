package datastore

import "github.com/quantum-forge/orchestrator-core/pkg/models"

// Table name constants match the PostgREST schema the Logging Emitter writes
// to (spec §4.8).
const (
	TableMolecules      = "molecules"
	TableCalculations   = "calculations"
	TableQualityMetrics = "data_quality_metrics"
	TableLineage        = "data_lineage"
)

// Molecules returns a typed accessor for the molecules table.
func (c *Client) Molecules() Table[models.Molecule] { return NewTable[models.Molecule](c, TableMolecules) }

// Calculations returns a typed accessor for the calculations table.
func (c *Client) Calculations() Table[models.Calculation] {
	return NewTable[models.Calculation](c, TableCalculations)
}

// QualityMetrics returns a typed accessor for the data_quality_metrics table.
func (c *Client) QualityMetrics() Table[models.QualityMetrics] {
	return NewTable[models.QualityMetrics](c, TableQualityMetrics)
}

// Lineage returns a typed accessor for the data_lineage table.
func (c *Client) Lineage() Table[models.Lineage] { return NewTable[models.Lineage](c, TableLineage) }
