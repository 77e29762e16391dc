package queue_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitinnocom/LTFS-Data-Management/internal/testhelpers"
	"github.com/bitinnocom/LTFS-Data-Management/queue"
)

func openStore(t *testing.T) *queue.Store {
	store, err := queue.Open("")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateTables(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

const insertJob = `INSERT INTO JOB_QUEUE ` +
	`(OPERATION, FILE_NAME, REQ_NUM, TARGET_STATE, REPL_NUM, TAPE_POOL, ` +
	`FILE_SIZE, FS_ID, I_GEN, I_NUM, MTIME_SEC, MTIME_NSEC, LAST_UPD, ` +
	`TAPE_ID, FILE_STATE, START_BLOCK, CONN_INFO) ` +
	`VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func addJobRow(t *testing.T, store *queue.Store, inum int64, name interface{}) error {
	_, err := store.Exec(insertJob,
		queue.TraRecall, name, 1, 0, queue.ReplUnset, nil,
		4096, 17, 1, inum, 0, 0, 0, "T00001", 2, 100, 42)
	return err
}

func TestJobUniqueness(t *testing.T) {
	store := openStore(t)

	if err := addJobRow(t, store, 42, nil); err != nil {
		t.Fatal(err)
	}
	if err := addJobRow(t, store, 42, nil); err == nil {
		t.Fatal("duplicate job for same file uid accepted")
	}
	if err := addJobRow(t, store, 43, nil); err != nil {
		t.Fatal(err)
	}

	count := 0
	err := store.Rows("SELECT COUNT(*) FROM JOB_QUEUE", func(rows *sql.Rows) error {
		return rows.Scan(&count)
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 jobs, have %d", count)
	}
}

func TestRequestUniqueness(t *testing.T) {
	store := openStore(t)

	ins := `INSERT INTO REQUEST_QUEUE (OPERATION, REQ_NUM, REPL_NUM, TAPE_POOL, TAPE_ID, TIME_ADDED, STATE) ` +
		`VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := store.Exec(ins, queue.TraRecall, 1, 0, "pool", "T00001", 0, queue.ReqNew); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Exec(ins, queue.TraRecall, 1, 0, "pool", "T00001", 0, queue.ReqNew); err == nil {
		t.Fatal("duplicate request row accepted")
	}
	if _, err := store.Exec(ins, queue.TraRecall, 1, 0, "pool", "T00002", 0, queue.ReqNew); err != nil {
		t.Fatal(err)
	}
}

func TestTransactionRollback(t *testing.T) {
	store := openStore(t)

	if err := store.BeginTransaction(); err != nil {
		t.Fatal(err)
	}
	if err := addJobRow(t, store, 7, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Rollback(); err != nil {
		t.Fatal(err)
	}

	count := -1
	err := store.Rows("SELECT COUNT(*) FROM JOB_QUEUE", func(rows *sql.Rows) error {
		return rows.Scan(&count)
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("rolled back job still present (%d rows)", count)
	}

	if err := store.BeginTransaction(); err != nil {
		t.Fatal(err)
	}
	if err := addJobRow(t, store, 7, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.EndTransaction(); err != nil {
		t.Fatal(err)
	}

	err = store.Rows("SELECT COUNT(*) FROM JOB_QUEUE", func(rows *sql.Rows) error {
		return rows.Scan(&count)
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("committed job missing (%d rows)", count)
	}
}

func TestFits(t *testing.T) {
	store := openStore(t)

	free := int64(5000)
	found := int64(0)
	total := int64(0)
	freeSlot := queue.RegisterFitsCounter(&free)
	foundSlot := queue.RegisterFitsCounter(&found)
	totalSlot := queue.RegisterFitsCounter(&total)
	defer queue.ReleaseFitsCounter(freeSlot)
	defer queue.ReleaseFitsCounter(foundSlot)
	defer queue.ReleaseFitsCounter(totalSlot)

	for inum, size := range map[int64]int64{1: 4000, 2: 4000} {
		var fits int
		err := store.Rows("SELECT FITS(?, ?, ?, ?, ?)", func(rows *sql.Rows) error {
			return rows.Scan(&fits)
		}, inum, size, freeSlot, foundSlot, totalSlot)
		if err != nil {
			t.Fatal(err)
		}
	}

	if found != 1 {
		t.Errorf("expected 1 fitting file, have %d", found)
	}
	if total != 2 {
		t.Errorf("expected 2 candidates, have %d", total)
	}
	if free != 1000 {
		t.Errorf("expected 1000 bytes left, have %d", free)
	}
}

func TestCleanup(t *testing.T) {
	tdir, cleanDir := testhelpers.TempDir(t)
	defer cleanDir()

	path := filepath.Join(tdir, "queue.db")
	store, err := queue.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateTables(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("store file missing before cleanup: %v", err)
	}

	queue.Cleanup(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("store file still present after cleanup")
	}
}
