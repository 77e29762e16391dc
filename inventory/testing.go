package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bitinnocom/LTFS-Data-Management/connector"
)

// TestInventory is a temp-dir inventory: tape copies are plain files
// and start blocks are recorded in memory instead of xattrs.
type TestInventory struct {
	mu          sync.Mutex
	root        string
	cartridges  map[string]*Cartridge
	drives      []*Drive
	startBlocks map[string]int64
	nextSlot    int
}

// NewTest returns a TestInventory rooted at dir with two drives.
func NewTest(dir string) *TestInventory {
	return &TestInventory{
		root:       dir,
		cartridges: make(map[string]*Cartridge),
		drives: []*Drive{
			{id: "drive0", slot: 0},
			{id: "drive1", slot: 1},
		},
		startBlocks: make(map[string]int64),
	}
}

// AddTapeCopy materialises a file copy on a fake tape and records its
// start block. The cartridge appears mounted and idle.
func (inv *TestInventory) AddTapeCopy(uid connector.FileUID, tapeID string, data []byte, startBlock int64) (string, error) {
	name := TapePath(inv.root, uid, tapeID)
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return "", err
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.startBlocks[name] = startBlock
	if _, ok := inv.cartridges[tapeID]; !ok {
		inv.cartridges[tapeID] = &Cartridge{id: tapeID, state: TapeMounted, slot: inv.nextSlot}
		inv.nextSlot++
	}
	return name, nil
}

func (inv *TestInventory) TapeName(uid connector.FileUID, tapeID string) string {
	return TapePath(inv.root, uid, tapeID)
}

func (inv *TestInventory) StartBlock(tapeName string) int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.startBlocks[tapeName]
}

func (inv *TestInventory) Cartridge(tapeID string) *Cartridge {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return findCartridge(inv.cartridges, tapeID)
}

func (inv *TestInventory) Drives() []*Drive {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for len(inv.drives) < len(inv.cartridges) {
		inv.drives = append(inv.drives, &Drive{
			id:   fmt.Sprintf("drive%d", len(inv.drives)),
			slot: len(inv.drives),
		})
	}
	return append([]*Drive(nil), inv.drives...)
}

func (inv *TestInventory) Mount(driveID, tapeID string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	cart := findCartridge(inv.cartridges, tapeID)
	if cart == nil {
		return os.ErrNotExist
	}
	drive, err := findDrive(inv.drives, driveID)
	if err != nil {
		return err
	}
	drive.SetBusy()
	cart.setSlot(drive.Slot())
	cart.SetState(TapeInUse)
	return nil
}
