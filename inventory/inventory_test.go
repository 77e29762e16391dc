package inventory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitinnocom/LTFS-Data-Management/connector"
	"github.com/bitinnocom/LTFS-Data-Management/internal/testhelpers"
	"github.com/bitinnocom/LTFS-Data-Management/inventory"
)

func TestTapePath(t *testing.T) {
	uid := connector.FileUID{FsidHigh: 1, FsidLow: 2, IGen: 3, INum: 42}
	want := filepath.Join("/ltfs", "T00001", ".LTFSDM", "1.2.3.42")
	if got := inventory.TapePath("/ltfs", uid, "T00001"); got != want {
		t.Fatalf("expected %s, have %s", want, got)
	}
}

func TestLTFSDiscovery(t *testing.T) {
	tdir, cleanDir := testhelpers.TempDir(t)
	defer cleanDir()

	for _, tape := range []string{"T00001", "T00002", "T00003"} {
		if err := os.Mkdir(filepath.Join(tdir, tape), 0755); err != nil {
			t.Fatal(err)
		}
	}

	inv, err := inventory.NewLTFS(tdir, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(inv.Drives()) != 2 {
		t.Fatalf("expected 2 drives, have %d", len(inv.Drives()))
	}

	mounted := 0
	for _, tape := range []string{"T00001", "T00002", "T00003"} {
		cart := inv.Cartridge(tape)
		if cart == nil {
			t.Fatalf("cartridge %s missing", tape)
		}
		if cart.State() == inventory.TapeMounted {
			mounted++
		}
	}
	if mounted != 2 {
		t.Fatalf("expected 2 mounted cartridges, have %d", mounted)
	}

	if inv.Cartridge("T99999") != nil {
		t.Fatal("unknown cartridge resolved")
	}
}

func TestLTFSMount(t *testing.T) {
	tdir, cleanDir := testhelpers.TempDir(t)
	defer cleanDir()

	for _, tape := range []string{"T00001", "T00002"} {
		if err := os.Mkdir(filepath.Join(tdir, tape), 0755); err != nil {
			t.Fatal(err)
		}
	}

	// one drive: the second cartridge stays unmounted
	inv, err := inventory.NewLTFS(tdir, 1)
	if err != nil {
		t.Fatal(err)
	}

	var unmounted *inventory.Cartridge
	for _, tape := range []string{"T00001", "T00002"} {
		if c := inv.Cartridge(tape); c.State() == inventory.TapeUnmounted {
			unmounted = c
		}
	}
	if unmounted == nil {
		t.Fatal("expected one unmounted cartridge")
	}

	drive := inv.Drives()[0]
	if err := inv.Mount(drive.ID(), unmounted.ID()); err != nil {
		t.Fatal(err)
	}
	if unmounted.State() != inventory.TapeInUse {
		t.Fatalf("expected in use, have %s", unmounted.State())
	}
	if unmounted.Slot() != drive.Slot() {
		t.Fatal("cartridge not bound to the drive slot")
	}

	// the drive is taken now
	if err := inv.Mount(drive.ID(), unmounted.ID()); err == nil {
		t.Fatal("mount on a busy drive accepted")
	}
}

func TestTestInventoryStartBlock(t *testing.T) {
	tdir, cleanDir := testhelpers.TempDir(t)
	defer cleanDir()

	inv := inventory.NewTest(tdir)
	uid := connector.FileUID{FsidHigh: 1, FsidLow: 1, IGen: 1, INum: 42}
	name, err := inv.AddTapeCopy(uid, "T00001", []byte("data"), 123)
	if err != nil {
		t.Fatal(err)
	}

	if got := inv.StartBlock(name); got != 123 {
		t.Fatalf("expected start block 123, have %d", got)
	}
	if got := inv.StartBlock(name + ".missing"); got != 0 {
		t.Fatalf("unknown copy must report block 0, have %d", got)
	}
}
