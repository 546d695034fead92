package importer

import (
	"fmt"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/errors"
)

// Outcome tags the reconciliation result for one observation.
type Outcome int

const (
	// OutcomeNewIdentity means no predecessor exists: the observation is
	// seen for the first time.
	OutcomeNewIdentity Outcome = iota
	// OutcomeMigrated means exactly one predecessor was found and its
	// history moved over.
	OutcomeMigrated
	// OutcomeAmbiguous means two or more predecessors share the identity.
	// No migration happens; the condition is reported but does not stop
	// the batch.
	OutcomeAmbiguous
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNewIdentity:
		return "new_identity"
	case OutcomeMigrated:
		return "migrated"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// AmbiguousIdentityError reports multiple predecessors for one stable
// identity. It is a data quality signal for offline inspection, not an
// ingestion fault.
type AmbiguousIdentityError struct {
	StableID     string
	Predecessors int
}

func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("stable identity %s has %d predecessors", e.StableID, e.Predecessors)
}

// reconcile matches a freshly persisted observation against predecessors from
// earlier batches. With one predecessor, the observation inherits its
// first-seen batch and takes over its comments, views and unseen markers,
// leaving the predecessor an empty shell for the purge step. The returned
// error is fatal only when it is not an *AmbiguousIdentityError.
func reconcile(tx *datastore.DataStore, obs *datastore.Observation) (Outcome, error) {
	predecessors, err := tx.IdenticalObservations(obs)
	if err != nil {
		return OutcomeNewIdentity, err
	}

	switch len(predecessors) {
	case 0:
		return OutcomeNewIdentity, nil
	case 1:
		predecessor := &predecessors[0]
		obs.InitialDataImportID = predecessor.InitialDataImportID
		if err := tx.SaveObservation(obs); err != nil {
			return OutcomeMigrated, err
		}
		if err := tx.MigrateLinkedEntities(predecessor, obs); err != nil {
			return OutcomeMigrated, err
		}
		return OutcomeMigrated, nil
	default:
		return OutcomeAmbiguous, errors.New(&AmbiguousIdentityError{
			StableID:     obs.StableID,
			Predecessors: len(predecessors),
		}).
			Component("importer").
			Category(errors.CategoryReconciliation).
			Context("stable_id", obs.StableID).
			Build()
	}
}
