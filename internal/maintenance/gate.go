// Package maintenance guards the import pipeline with a site-wide exclusion
// gate. While the gate is held the whole system is considered read-only for
// everything except the holder.
package maintenance

import (
	"fmt"
	"log/slog"

	"github.com/gbif-alert/gbif-alert-go/internal/datastore"
	"github.com/gbif-alert/gbif-alert-go/internal/errors"
	"github.com/gbif-alert/gbif-alert-go/internal/logging"
)

// Gate wraps the datastore's maintenance lock with logging and categorized
// errors. One Gate per process is enough; the lock itself lives in the
// database so separate processes exclude each other too.
type Gate struct {
	store datastore.Interface
	log   *slog.Logger
}

// NewGate returns a gate backed by the given store.
func NewGate(store datastore.Interface) *Gate {
	return &Gate{store: store, log: logging.ForService("maintenance")}
}

// Enter acquires the gate for the named holder. A held gate is a hard stop,
// callers must not retry in a loop.
func (g *Gate) Enter(holder string) error {
	err := g.store.AcquireMaintenanceLock(holder)
	if err == nil {
		g.log.Info("maintenance gate acquired", "holder", holder)
		return nil
	}
	if errors.Is(err, datastore.ErrMaintenanceLockHeld) {
		current, _, holderErr := g.store.MaintenanceLockHolder()
		if holderErr == nil && current != "" {
			return errors.New(fmt.Errorf("maintenance gate held by %q", current)).
				Component("maintenance").
				Category(errors.CategoryState).
				Context("holder", current).
				Build()
		}
		return errors.New(datastore.ErrMaintenanceLockHeld).
			Component("maintenance").
			Category(errors.CategoryState).
			Build()
	}
	return errors.New(err).
		Component("maintenance").
		Category(errors.CategoryDatabase).
		Build()
}

// Leave releases the gate. Always safe to call, including when the gate was
// never acquired, so it belongs in a defer right after a successful Enter.
func (g *Gate) Leave() {
	if err := g.store.ReleaseMaintenanceLock(); err != nil {
		g.log.Error("failed to release maintenance gate", "error", err)
		return
	}
	g.log.Info("maintenance gate released")
}

// Active reports whether the gate is currently held and by whom.
func (g *Gate) Active() (holder string, held bool, err error) {
	return g.store.MaintenanceLockHolder()
}
