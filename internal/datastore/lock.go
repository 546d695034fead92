package datastore

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MaintenanceLock is a single-row advisory lock. Row id 1 being present means
// an import pipeline run is active and every other mutator must stand back.
// The lock is advisory: correctness relies on all callers respecting it.
type MaintenanceLock struct {
	ID         uint      `gorm:"primaryKey"`
	Holder     string    `gorm:"not null"`
	AcquiredAt time.Time `gorm:"not null"`
}

const maintenanceLockID = 1

// ErrMaintenanceLockHeld is returned when the lock is already taken. Callers
// are expected to fail fast, not queue.
var ErrMaintenanceLockHeld = stderrors.New("maintenance lock already held")

// AcquireMaintenanceLock takes the process-wide exclusion gate. Fails
// immediately with ErrMaintenanceLockHeld when another run holds it.
func (ds *DataStore) AcquireMaintenanceLock(holder string) error {
	lock := MaintenanceLock{
		ID:         maintenanceLockID,
		Holder:     holder,
		AcquiredAt: time.Now().UTC(),
	}
	err := ds.DB.Create(&lock).Error
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return ErrMaintenanceLockHeld
	}
	return fmt.Errorf("acquiring maintenance lock: %w", err)
}

// ReleaseMaintenanceLock drops the gate. Releasing an unheld lock is not an
// error so release can run unconditionally in a defer.
func (ds *DataStore) ReleaseMaintenanceLock() error {
	if err := ds.DB.Delete(&MaintenanceLock{}, maintenanceLockID).Error; err != nil {
		return fmt.Errorf("releasing maintenance lock: %w", err)
	}
	return nil
}

// MaintenanceLockHolder reports whether the gate is held and by whom.
func (ds *DataStore) MaintenanceLockHolder() (string, bool, error) {
	var lock MaintenanceLock
	err := ds.DB.First(&lock, maintenanceLockID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checking maintenance lock: %w", err)
	}
	return lock.Holder, true, nil
}

// isUniqueViolation matches driver-level unique constraint errors that GORM
// does not translate on every backend.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
