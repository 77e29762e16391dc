// Package connector carries recall events between the managed filesystem
// and the recall core, and gives the core access to the file objects the
// events refer to.
package connector

import (
	"os"
)

type (
	// MigState is the migration state of a file as stored in the
	// FILE_STATE and TARGET_STATE columns.
	MigState int32

	// FileUID identifies a file independently of its name.
	FileUID struct {
		FsidHigh uint32
		FsidLow  uint32
		IGen     uint32
		INum     uint64
	}

	// Handle is an opaque reference to the connector-side context of one
	// recall event. The core never dereferences it; it is handed back
	// exactly once when the event is responded to. A zero Handle marks
	// the termination sentinel.
	Handle int64

	// RecallEvent is one application access to a migrated or
	// premigrated file.
	RecallEvent struct {
		UID        FileUID
		Filename   string
		ToResident bool
		Handle     Handle
	}

	// MigAttr is the migration attribute stored with a managed file.
	MigAttr struct {
		TapeIDs []string
	}

	// FileObject is the core's view of one managed file.
	FileObject interface {
		Stat() (os.FileInfo, error)
		MigState() (MigState, error)
		Attributes() (MigAttr, error)

		// Lock takes the per-file advisory lock. It is held for the
		// whole streaming of one recall.
		Lock() error
		Unlock() error

		PrepareRecall() error
		WriteAt(p []byte, off int64) (int, error)
		FinishRecall(state MigState) error
		RemoveAttributes() error
		Close() error
	}

	// Connector is the event side of a filesystem integration.
	Connector interface {
		// StartRecalls initializes event delivery.
		StartRecalls() error

		// ManageFs registers one filesystem as managed.
		ManageFs(path string) error

		// Events blocks until the next recall event is available. A
		// zero Handle is the termination sentinel.
		Events() (RecallEvent, error)

		// Respond delivers the one and only response for an event.
		Respond(ev RecallEvent, success bool) error

		// OpenObject opens the file object an event refers to.
		OpenObject(ev RecallEvent) (FileObject, error)

		// EndRecalls stops event delivery and unblocks Events with the
		// termination sentinel.
		EndRecalls()
	}
)

const (
	Resident MigState = iota
	Premigrated
	Migrated
	RecallingMig
	RecallingPremig
)

func (s MigState) String() string {
	switch s {
	case Resident:
		return "resident"
	case Premigrated:
		return "premigrated"
	case Migrated:
		return "migrated"
	case RecallingMig:
		return "recalling(m)"
	case RecallingPremig:
		return "recalling(p)"
	}
	return "unknown"
}

// FsID packs the two fsid words into the single FS_ID column value.
func (u FileUID) FsID() int64 {
	return int64(u.FsidHigh)<<32 | int64(u.FsidLow)
}

// FsidParts recovers the fsid words from an FS_ID column value.
func FsidParts(v int64) (hi, lo uint32) {
	return uint32(uint64(v) >> 32), uint32(uint64(v) & 0xffffffff)
}
