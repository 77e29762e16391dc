package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitinnocom/LTFS-Data-Management/internal/testhelpers"
)

func TestLoadConfig(t *testing.T) {
	tdir, cleanDir := testhelpers.TempDir(t)
	defer cleanDir()

	data := `
db_file = "/tmp/ltfsdm-test/queue.db"
socket = "/tmp/ltfsdm-test/transrecall.sock"
ltfs_root = "/mnt/ltfs"
num_drives = 4
recall_threads = 8
filesystems = ["/mnt/fs0", "/mnt/fs1"]
`
	path := filepath.Join(tdir, ConfigFile)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBFile != "/tmp/ltfsdm-test/queue.db" {
		t.Errorf("unexpected db file: %s", cfg.DBFile)
	}
	if cfg.NumDrives != 4 || cfg.RecallThreads != 8 {
		t.Errorf("unexpected counts: %+v", cfg)
	}
	if len(cfg.Filesystems) != 2 || cfg.Filesystems[0] != "/mnt/fs0" {
		t.Errorf("unexpected filesystems: %v", cfg.Filesystems)
	}

	// unset fields keep their defaults
	if cfg.ReadBufferSize == 0 {
		t.Error("read buffer default not applied")
	}
}

func TestLoadConfigRequiresFilesystems(t *testing.T) {
	tdir, cleanDir := testhelpers.TempDir(t)
	defer cleanDir()

	path := filepath.Join(tdir, ConfigFile)
	if err := os.WriteFile(path, []byte(`ltfs_root = "/mnt/ltfs"`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("config without managed filesystems accepted")
	}
}

func TestLoadConfigMissingFileStillValidates(t *testing.T) {
	tdir, cleanDir := testhelpers.TempDir(t)
	defer cleanDir()

	_, err := LoadConfig(filepath.Join(tdir, "nonexistent"))
	if err == nil {
		t.Fatal("defaults alone must fail validation: no filesystems")
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(&Config{Socket: "/tmp/x.sock", Filesystems: []string{"/mnt/fs0"}})

	if merged.Socket != "/tmp/x.sock" {
		t.Errorf("override lost: %s", merged.Socket)
	}
	if merged.DBFile != base.DBFile {
		t.Errorf("default lost: %s", merged.DBFile)
	}
	if base.Socket == merged.Socket {
		t.Error("merge must not mutate the receiver")
	}
}
