package inventory

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/intel-hpdd/logging/audit"
	"github.com/intel-hpdd/logging/debug"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/bitinnocom/LTFS-Data-Management/connector"
)

// startBlockAttr is the virtual extended attribute LTFS exposes with
// the first physical block of a file on tape.
const startBlockAttr = "user.ltfs.startblock"

// LTFS is an inventory over a directory of LTFS tape mounts: one
// subdirectory per cartridge, named by tape id.
type LTFS struct {
	mu         sync.Mutex
	root       string
	cartridges map[string]*Cartridge
	drives     []*Drive
}

// NewLTFS scans root for mounted cartridges and sets up numDrives
// drives. The first numDrives cartridges found under root start out
// mounted and idle; any further ones start out unmounted.
func NewLTFS(root string, numDrives int) (*LTFS, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: scan failed", root)
	}

	inv := &LTFS{
		root:       root,
		cartridges: make(map[string]*Cartridge),
	}
	for i := 0; i < numDrives; i++ {
		inv.drives = append(inv.drives, &Drive{id: fmt.Sprintf("drive%d", i), slot: i})
	}

	slot := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c := &Cartridge{id: e.Name(), state: TapeUnmounted, slot: -1}
		if slot < numDrives {
			c.state = TapeMounted
			c.slot = slot
			slot++
		}
		inv.cartridges[e.Name()] = c
		audit.Logf("cartridge %s found (%s)", c.id, c.State())
	}

	return inv, nil
}

func (inv *LTFS) TapeName(uid connector.FileUID, tapeID string) string {
	return TapePath(inv.root, uid, tapeID)
}

func (inv *LTFS) StartBlock(tapeName string) int64 {
	buf := make([]byte, 64)
	n, err := unix.Getxattr(tapeName, startBlockAttr, buf)
	if err != nil {
		debug.Printf("%s: no start block: %v", tapeName, err)
		return 0
	}

	v, err := strconv.ParseInt(strings.TrimSpace(string(buf[:n])), 10, 64)
	if err != nil {
		debug.Printf("%s: malformed start block: %v", tapeName, err)
		return 0
	}
	return v
}

func (inv *LTFS) Cartridge(tapeID string) *Cartridge {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return findCartridge(inv.cartridges, tapeID)
}

func (inv *LTFS) Drives() []*Drive {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]*Drive(nil), inv.drives...)
}

// Mount binds a cartridge to a drive. The directory inventory has no
// mechanical mount to perform, so the transition is immediate: the
// drive goes busy and the cartridge is left in use.
func (inv *LTFS) Mount(driveID, tapeID string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	cart := findCartridge(inv.cartridges, tapeID)
	if cart == nil {
		return errors.Errorf("no such cartridge %q", tapeID)
	}
	drive, err := findDrive(inv.drives, driveID)
	if err != nil {
		return err
	}
	if !drive.Free() {
		return errors.Errorf("drive %s busy", driveID)
	}

	cart.SetState(TapeMoving)
	drive.SetBusy()
	cart.setSlot(drive.Slot())
	cart.SetState(TapeInUse)
	audit.Logf("cartridge %s mounted on %s", tapeID, driveID)
	return nil
}
