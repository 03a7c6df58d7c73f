package container

import (
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/dfam-consortium/famdb"
)

// LeafContainer wraps a non-root partition file: family records plus
// the ByName/ByStage/NodesByTaxon indices (spec §4.4). It adds the
// file lock discipline the store package relies on for writers.
type LeafContainer struct {
	*Container
	lock *flock.Flock
}

// DBInfo carries the descriptive root attributes every container in a
// partitioned database must agree on (spec §4.6 cross-file consistency).
type DBInfo struct {
	Name        string
	Version     string
	Date        string
	Description string
	Copyright   string
}

// CreateLeaf makes a new, empty leaf container at path, ready for
// AddFamily calls and a first Save.
func CreateLeaf(path string, partitionNum uint32, info DBInfo) *LeafContainer {
	c := NewContainer(path, false)
	c.PartitionNum = partitionNum
	c.DBName = info.Name
	c.DBVersion = info.Version
	c.DBDate = info.Date
	c.DBDescription = info.Description
	c.DBCopyright = info.Copyright
	return &LeafContainer{Container: c, lock: flock.New(path + ".lock")}
}

// OpenLeaf loads an existing leaf container, failing with
// ErrInterruptedWrite if its last changelog entry never verified
// (spec §7, crash-recovery scenario).
func OpenLeaf(path string) (*LeafContainer, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if c.IsRoot {
		return nil, fmt.Errorf("container: %s is a root container, not a leaf", path)
	}
	if !c.LastChangelogVerified() {
		return nil, ErrInterruptedWrite
	}
	return &LeafContainer{Container: c, lock: flock.New(path + ".lock")}, nil
}

// ErrInterruptedWrite is returned by Open when a container's final
// changelog entry was never verified, meaning the previous writer
// crashed mid-operation.
var ErrInterruptedWrite = fmt.Errorf("container: last write was not verified; file may be corrupt")

// Lock tries once to acquire the container's exclusive write lock and
// fails at once if another writer holds it; it does not wait (mirrors the teacher's
// single-writer file convention, extended with gofrs/flock since the
// teacher never needed cross-process locking for its read-mostly
// k-mer indices).
func (l *LeafContainer) Lock() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("container: %s is locked by another writer", l.Path)
	}
	return nil
}

// Unlock releases the write lock acquired by Lock.
func (l *LeafContainer) Unlock() error {
	return l.lock.Unlock()
}

// AddFamilyNow is AddFamily stamped with the current time, the
// convenience entry point store.Append uses.
func (l *LeafContainer) AddFamilyNow(f *famdb.Family) error {
	return l.AddFamily(f, time.Now().UTC().Format(time.RFC3339))
}
