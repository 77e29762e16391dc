// Package inventory tracks tape cartridges and drives and maps managed
// files to their copies inside LTFS tape mounts.
package inventory

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/bitinnocom/LTFS-Data-Management/connector"
)

type (
	// CartridgeState is the lifecycle state of one tape cartridge.
	CartridgeState int

	// Cartridge is one tape.
	Cartridge struct {
		mu    sync.Mutex
		id    string
		state CartridgeState
		slot  int
	}

	// Drive is one tape drive.
	Drive struct {
		mu   sync.Mutex
		id   string
		slot int
		busy bool
	}

	// Inventory is the resource view the scheduler and the recall
	// executor share.
	Inventory interface {
		// TapeName derives the path of a file's copy on a tape.
		TapeName(uid connector.FileUID, tapeID string) string

		// StartBlock reports the physical block a tape copy starts
		// at, 0 when unknown.
		StartBlock(tapeName string) int64

		Cartridge(tapeID string) *Cartridge
		Drives() []*Drive

		// Mount binds a cartridge to a drive and leaves it in use.
		Mount(driveID, tapeID string) error
	}
)

const (
	TapeUnmounted CartridgeState = iota
	TapeMoving
	TapeMounted
	TapeInUse
)

func (s CartridgeState) String() string {
	switch s {
	case TapeUnmounted:
		return "unmounted"
	case TapeMoving:
		return "moving"
	case TapeMounted:
		return "mounted"
	case TapeInUse:
		return "in use"
	}
	return "unknown"
}

func (c *Cartridge) ID() string { return c.id }

func (c *Cartridge) State() CartridgeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Cartridge) SetState(s CartridgeState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Cartridge) Slot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot
}

func (c *Cartridge) setSlot(slot int) {
	c.mu.Lock()
	c.slot = slot
	c.mu.Unlock()
}

func (d *Drive) ID() string { return d.id }
func (d *Drive) Slot() int  { return d.slot }

func (d *Drive) Free() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.busy
}

func (d *Drive) SetFree() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
}

func (d *Drive) SetBusy() {
	d.mu.Lock()
	d.busy = true
	d.mu.Unlock()
}

// tapeCopyName is the per-file name below a tape's data directory.
func tapeCopyName(uid connector.FileUID) string {
	return fmt.Sprintf("%d.%d.%d.%d", uid.FsidHigh, uid.FsidLow, uid.IGen, uid.INum)
}

// dataDir is where migrated copies live inside an LTFS mount.
const dataDir = ".LTFSDM"

// TapePath builds the path of a file copy below an LTFS root.
func TapePath(root string, uid connector.FileUID, tapeID string) string {
	return filepath.Join(root, tapeID, dataDir, tapeCopyName(uid))
}

func findCartridge(carts map[string]*Cartridge, tapeID string) *Cartridge {
	return carts[tapeID]
}

func findDrive(drives []*Drive, id string) (*Drive, error) {
	for _, d := range drives {
		if d.id == id {
			return d, nil
		}
	}
	return nil, errors.Errorf("no such drive %q", id)
}
