package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/gbif"
)

// datasetRegistry resolves datasets for the duration of one pipeline run.
// Results are cached per key so the huge row loop never repeats a database
// lookup or an API call.
type datasetRegistry struct {
	tx    *datastore.DataStore
	api   gbif.DatasetAPI
	byKey map[string]*datastore.Dataset
	log   *slog.Logger
}

func newDatasetRegistry(tx *datastore.DataStore, api gbif.DatasetAPI, log *slog.Logger) *datasetRegistry {
	return &datasetRegistry{
		tx:    tx,
		api:   api,
		byKey: make(map[string]*datastore.Dataset),
		log:   log,
	}
}

// getOrCreate returns the dataset for a key, creating it on first reference.
// Some upstream rows carry an empty dataset name; those fall back to the
// registry API so we never store a nameless dataset.
func (r *datasetRegistry) getOrCreate(ctx context.Context, key, name string) (*datastore.Dataset, error) {
	if dataset, ok := r.byKey[key]; ok {
		return dataset, nil
	}

	dataset, err := r.tx.DatasetByKey(key)
	switch {
	case err == nil:
		if name != "" && dataset.Name != name {
			dataset.Name = name
			if err := r.tx.SaveDataset(dataset); err != nil {
				return nil, err
			}
		}
		r.byKey[key] = dataset
		return dataset, nil
	case datastore.IsNotFound(err):
		// fall through to creation
	default:
		return nil, fmt.Errorf("looking up dataset %q: %w", key, err)
	}

	if name == "" {
		name, err = r.api.DatasetTitle(ctx, key)
		if err != nil {
			return nil, err
		}
		r.log.Debug("dataset name missing from snapshot, resolved via API",
			"dataset_key", key, "name", name)
	}

	dataset = &datastore.Dataset{Name: name, GBIFDatasetKey: key}
	if err := r.tx.CreateDataset(dataset); err != nil {
		return nil, err
	}
	r.byKey[key] = dataset
	return dataset, nil
}
