package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/errors"
	"github.com/gbif-alert/gbif-alert-go/internal/gbif"
	"github.com/gbif-alert/gbif-alert-go/internal/logging"
	"github.com/gbif-alert/gbif-alert-go/internal/maintenance"
	"github.com/gbif-alert/gbif-alert-go/internal/observability/metrics"
	"github.com/gbif-alert/gbif-alert-go/internal/snapshot"
)

// RowEvent is emitted once per processed row for progress reporting.
type RowEvent int

const (
	RowImported RowEvent = iota
	RowSkipped
)

// Options configures one pipeline run.
type Options struct {
	Store      datastore.Interface
	Snapshot   snapshot.Reader
	DatasetAPI gbif.DatasetAPI

	// Predicate is the serialized download query the snapshot was produced
	// from, empty for locally supplied files. Stored on the batch record.
	Predicate string

	Metrics  *metrics.ImportMetrics
	Progress func(RowEvent)
	Log      *slog.Logger
}

// Result summarizes a completed run.
type Result struct {
	ImportID  uint
	Imported  int64
	Skipped   int
	Ambiguous int
	Datasets  int
	Purged    int64
	Pruned    int
	Duration  time.Duration
}

// Run executes the whole batch import. The maintenance gate is held for the
// duration and released unconditionally. Everything between batch creation
// and finalization happens in one database transaction: on any fatal error
// the database is left exactly as it was before the run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = logging.ForService("importer")
	}

	gate := maintenance.NewGate(opts.Store)
	holder := "import-" + uuid.NewString()[:8]
	if err := gate.Enter(holder); err != nil {
		return nil, err
	}
	defer gate.Leave()

	opts.Metrics.RecordRunStarted()
	started := time.Now()

	result := &Result{}
	err := opts.Store.Transaction(func(tx *datastore.DataStore) error {
		return runInTransaction(ctx, tx, opts, log, result)
	})

	result.Duration = time.Since(started)
	opts.Metrics.RecordRunFinished(err == nil, result.Duration)
	if err != nil {
		log.Error("import aborted, database rolled back",
			"error", err, "duration", result.Duration)
		return nil, err
	}

	log.Info("import completed",
		"import_id", result.ImportID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"ambiguous", result.Ambiguous,
		"purged", result.Purged,
		"pruned_datasets", result.Pruned,
		"duration", result.Duration)
	return result, nil
}

func runInTransaction(ctx context.Context, tx *datastore.DataStore, opts Options, log *slog.Logger, result *Result) error {
	now := time.Now().UTC()

	batch := &datastore.DataImport{
		Start:          now,
		GBIFDownloadID: opts.Snapshot.DownloadID(),
		GBIFPredicate:  opts.Predicate,
	}
	if err := tx.CreateDataImport(batch); err != nil {
		return err
	}
	result.ImportID = batch.ID
	log.Info("created import batch", "import_id", batch.ID, "download_id", batch.GBIFDownloadID)

	speciesByKey, err := tx.SpeciesByTaxonKey()
	if err != nil {
		return err
	}
	if len(speciesByKey) == 0 {
		return errors.Newf("species reference table is empty, nothing can be imported").
			Component("importer").
			Category(errors.CategoryConfiguration).
			Build()
	}

	registry := newDatasetRegistry(tx, opts.DatasetAPI, log)
	mapper := &rowMapper{batch: batch, speciesByKey: speciesByKey, datasets: registry}

	engine, err := newEligibilityEngine(tx, now, opts.Metrics, log)
	if err != nil {
		return err
	}

	if err := streamRows(ctx, tx, opts, mapper, engine, result); err != nil {
		return err
	}
	result.Datasets = len(registry.byKey)

	purged, err := tx.PurgeObservationsNotInImport(batch.ID)
	if err != nil {
		return err
	}
	result.Purged = purged
	log.Info("purged observations from previous batches", "count", purged)

	pruned, err := tx.PruneUnreferencedDatasets()
	if err != nil {
		return err
	}
	result.Pruned = len(pruned)
	for i := range pruned {
		log.Info("pruned empty dataset",
			"dataset_key", pruned[i].GBIFDatasetKey, "name", pruned[i].Name)
	}

	// The final imported counter comes from the database, not from the in
	// memory tally, so the batch record can never disagree with the data.
	imported, err := tx.CountObservationsForImport(batch.ID)
	if err != nil {
		return err
	}
	result.Imported = imported

	end := time.Now().UTC()
	batch.End = &end
	batch.Completed = true
	batch.ImportedCount = int(imported)
	batch.SkippedCount = result.Skipped
	batch.AmbiguousCount = result.Ambiguous
	return tx.SaveDataImport(batch)
}

// streamRows processes the snapshot sequentially. Reconciliation correctness
// relies on this total ordering, there are no parallel workers inside a run.
func streamRows(ctx context.Context, tx *datastore.DataStore, opts Options, mapper *rowMapper, engine *eligibilityEngine, result *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import interrupted: %w", err)
		}

		row, err := opts.Snapshot.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		obs, err := mapper.mapRow(ctx, row)
		if err != nil {
			if reason, skipped := SkipReasonOf(err); skipped {
				result.Skipped++
				opts.Metrics.RecordRowSkipped(string(reason))
				notifyProgress(opts, RowSkipped)
				continue
			}
			return err
		}

		if err := tx.CreateObservation(obs); err != nil {
			return err
		}

		outcome, err := reconcile(tx, obs)
		switch outcome {
		case OutcomeNewIdentity:
			if err != nil {
				return err
			}
			if err := engine.evaluate(obs); err != nil {
				return err
			}
		case OutcomeMigrated:
			if err != nil {
				return err
			}
		case OutcomeAmbiguous:
			// Not fatal: the row stays, nothing is migrated, the batch
			// continues. Recorded for offline inspection.
			result.Ambiguous++
			logAmbiguous(opts, err, obs)
		}
		opts.Metrics.RecordOutcome(
			outcome == OutcomeNewIdentity,
			outcome == OutcomeMigrated,
			outcome == OutcomeAmbiguous)
		opts.Metrics.RecordRowImported()
		notifyProgress(opts, RowImported)
	}
}

func notifyProgress(opts Options, event RowEvent) {
	if opts.Progress != nil {
		opts.Progress(event)
	}
}

func logAmbiguous(opts Options, err error, obs *datastore.Observation) {
	log := opts.Log
	if log == nil {
		log = logging.ForService("importer")
	}
	log.Warn("ambiguous identity, no migration performed",
		"stable_id", obs.StableID, "error", err)
}
