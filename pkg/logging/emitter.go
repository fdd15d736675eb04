// Package logging implements the Logging Emitter (spec §4.8): best-effort
// propagation of a completed job's results to the DataStore as four
// independent row emissions. The "one failure doesn't abort the others,
// everything wrapped so a panic can't escape, structured slog logger field"
// shape is grounded on internal/storage/lineage_store.go's event-store
// discipline (correlator-io, other_examples/).
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quantum-forge/orchestrator-core/pkg/datastore"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/quality"
)

// Emitter pushes molecule/calculation/quality/lineage rows to the DataStore
// after a successful run. A nil or disabled client turns EmitRun into a
// no-op, so callers never need to branch on configuration.
type Emitter struct {
	client  *datastore.Client
	enabled bool
	logger  *slog.Logger
}

// New builds an Emitter. enabled should mirror config.DataStoreConfig.Enabled.
func New(client *datastore.Client, enabled bool, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{client: client, enabled: enabled, logger: logger}
}

// Run bundles everything EmitRun needs to assemble the four DataStore rows.
type Run struct {
	Job     *models.Job
	Result  *models.Results
	Quality *quality.Metrics
}

// EmitRun performs the four emissions of spec §4.8 in order: molecules
// upsert, calculations row, data_quality_metrics row, data_lineage row. Each runs in
// its own recover()-guarded closure so a panic in the datastore client
// cannot crash the worker loop, and every *datastore.Error is logged and
// swallowed (spec §7 DataStore row, §8 scenario 6) — the job's on-disk state
// is already authoritative by the time EmitRun is called. The calculations
// row references the molecule id and is skipped when the molecule emission
// yields none; the quality-metrics and lineage rows are always attempted.
func (e *Emitter) EmitRun(ctx context.Context, run Run) {
	if !e.enabled || e.client == nil {
		return
	}

	log := e.logger.With("job_id", run.Job.JobID)

	if moleculeID := e.emitMolecule(ctx, log, run); moleculeID != 0 {
		e.emitCalculation(ctx, log, run, moleculeID)
	}

	entityID := DeriveEntityID(run.Job.JobID)
	e.emitQualityMetrics(ctx, log, run, entityID)
	e.emitLineage(ctx, log, run, entityID)
}

func (e *Emitter) emitMolecule(ctx context.Context, log *slog.Logger, run Run) int64 {
	var id int64
	guarded(log, "emit_molecule", func() error {
		existing, err := e.client.Molecules().Get(ctx, datastore.Filters{datastore.Eq("smiles", run.Job.MoleculeName)})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			id = existing[0].ID
			return nil
		}

		created, err := e.client.Molecules().Insert(ctx, models.Molecule{
			Name:      run.Job.MoleculeName,
			SMILES:    run.Job.MoleculeName,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		id = created.ID
		return nil
	})
	return id
}

func (e *Emitter) emitCalculation(ctx context.Context, log *slog.Logger, run Run, moleculeID int64) {
	guarded(log, "emit_calculation", func() error {
		row := models.Calculation{
			MoleculeID:           moleculeID,
			ExecutionTimeSeconds: run.Result.ExecutionTime,
			XTBVersion:           run.Result.XTBVersion,
			Method:               run.Result.Method,
			ConvergenceStatus:    models.ConvergenceStatus(run.Result.ConvergenceStatus),
			QualityScore:         run.Quality.Overall,
			IsMLReady:            run.Quality.IsMLReady(),
			CreatedAt:            time.Now().UTC(),
			UpdatedAt:            time.Now().UTC(),
		}
		if run.Result.Energy != nil {
			row.Energy = *run.Result.Energy
		}
		if run.Result.Homo != nil {
			row.Homo = *run.Result.Homo
		}
		if run.Result.Lumo != nil {
			row.Lumo = *run.Result.Lumo
		}
		if run.Result.Gap != nil {
			row.Gap = *run.Result.Gap
		}
		if run.Result.Dipole != nil {
			row.Dipole = *run.Result.Dipole
		}
		_, err := e.client.Calculations().Insert(ctx, row)
		return err
	})
}

func (e *Emitter) emitQualityMetrics(ctx context.Context, log *slog.Logger, run Run, entityID int64) {
	guarded(log, "emit_quality_metrics", func() error {
		_, err := e.client.QualityMetrics().Insert(ctx, models.QualityMetrics{
			EntityType:          "calculations",
			EntityID:            entityID,
			Completeness:        run.Quality.Completeness,
			Validity:            run.Quality.Validity,
			Consistency:         run.Quality.Consistency,
			Uniqueness:          run.Quality.Uniqueness,
			Overall:             run.Quality.Overall,
			IsOutlier:           run.Quality.IsOutlier,
			IsSuspicious:        run.Quality.IsSuspicious,
			HasMissingValues:    run.Quality.HasMissingValues,
			FailedValidation:    run.Quality.FailedValidation,
			MissingFields:       run.Quality.MissingFields,
			DataSource:          fmt.Sprintf("xtb_%s", run.Result.XTBVersion),
			ValidationMethod:    "quantum_forge_quality_assessor",
			ValidationTimestamp: time.Now().UTC(),
		})
		return err
	})
}

func (e *Emitter) emitLineage(ctx context.Context, log *slog.Logger, run Run, entityID int64) {
	guarded(log, "emit_lineage", func() error {
		params := map[string]any{
			"optimization_level": string(run.Job.OptimizationLevel),
			"charge":             run.Job.Charge,
			"multiplicity":       run.Job.Multiplicity,
		}
		if run.Result.HomoEstimated {
			params["homo_estimated"] = true
		}

		_, err := e.client.Lineage().Insert(ctx, models.Lineage{
			EntityType:           "calculations",
			EntityID:             entityID,
			SourceType:           "computation",
			SourceReference:      run.Job.JobID,
			SoftwareVersion:      run.Result.XTBVersion,
			AlgorithmVersion:     run.Result.Method,
			ProcessingParameters: params,
			ApprovedForML:        run.Quality.IsMLReady(),
		})
		return err
	})
}

// guarded runs fn, recovering from any panic and logging (without
// propagating) any error it returns — including *datastore.Error.
func guarded(log *slog.Logger, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("logging emission panicked", "op", op, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		log.Warn("logging emission failed, job outcome unaffected", "op", op, "error", err)
	}
}

// DeriveEntityID implements spec §9 "Entity-id derivation": the job id's
// trailing hex suffix, interpreted as base-16 and reduced modulo 10^8. This
// is intentionally lossy — job_id remains the authoritative correlation key
// via source_reference, collisions in entity_id are tolerated (§9 open
// question: widening the column instead was considered and rejected, see
// DESIGN.md).
func DeriveEntityID(jobID string) int64 {
	idx := strings.LastIndexByte(jobID, '_')
	if idx < 0 || idx == len(jobID)-1 {
		return 0
	}
	suffix := jobID[idx+1:]

	v, err := strconv.ParseUint(suffix, 16, 64)
	if err != nil {
		return 0
	}
	return int64(v % 100000000)
}
