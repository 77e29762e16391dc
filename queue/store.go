// Package queue is the embedded store for outstanding jobs and
// requests. One process-wide SQLite handle, opened with full mutex
// serialisation, backs both tables.
package queue

import (
	"database/sql"
	"os"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/intel-hpdd/logging/debug"
)

type (
	// Operation is the kind of work a job or request carries.
	Operation int

	// ReqState is the scheduling state of a request.
	ReqState int

	// Store wraps the single shared database connection.
	Store struct {
		path string
		db   *sql.DB
		conn *sql.Conn

		// dbMu serialises statements so a streaming result can never
		// interleave with a mutation on the shared connection.
		dbMu sync.Mutex

		// txMu is the whole-database transaction lock, held from
		// BeginTransaction to EndTransaction or Rollback.
		txMu sync.Mutex
	}
)

const (
	Migration Operation = iota
	SelRecall
	TraRecall
)

const (
	ReqNew ReqState = iota
	ReqInProgress
	ReqCompleted
)

// ReplUnset marks the replica number of operations that do not
// replicate across pools.
const ReplUnset = -1

// DefaultDBFile is where the daemon keeps the store unless configured
// otherwise.
const DefaultDBFile = "/var/run/ltfsdm/queue.db"

const driverName = "ltfsdm_sqlite3"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) error {
			return c.RegisterFunc("FITS", fits, true)
		},
	})
}

func (op Operation) String() string {
	switch op {
	case Migration:
		return "migration"
	case SelRecall:
		return "selective recall"
	case TraRecall:
		return "transparent recall"
	}
	return "unknown"
}

func (st ReqState) String() string {
	switch st {
	case ReqNew:
		return "new"
	case ReqInProgress:
		return "in progress"
	case ReqCompleted:
		return "completed"
	}
	return "unknown"
}

// Open opens or creates the store. An empty path selects an in-memory
// database.
func Open(path string) (*Store, error) {
	// one connection serves the whole process, so an in-memory store
	// needs no shared cache and stays private to its Store
	uri := "file::memory:?_mutex=full"
	if path != "" {
		uri = "file:" + path + "?mode=rwc&cache=shared&_mutex=full"
	}

	db, err := sql.Open(driverName, uri)
	if err != nil {
		return nil, errors.Wrap(err, "open store failed")
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(context.Background())
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect store failed")
	}
	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		db.Close()
		return nil, errors.Wrap(err, "ping store failed")
	}

	return &Store{path: path, db: db, conn: conn}, nil
}

const jobQueueDDL = `CREATE TABLE JOB_QUEUE(` +
	`OPERATION INT NOT NULL, ` +
	`FILE_NAME CHAR(4096), ` +
	`REQ_NUM INT NOT NULL, ` +
	`TARGET_STATE INT NOT NULL, ` +
	`REPL_NUM INT, ` +
	`TAPE_POOL VARCHAR, ` +
	`FILE_SIZE BIGINT NOT NULL, ` +
	`FS_ID BIGINT NOT NULL, ` +
	`I_GEN INT NOT NULL, ` +
	`I_NUM BIGINT NOT NULL, ` +
	`MTIME_SEC BIGINT NOT NULL, ` +
	`MTIME_NSEC BIGINT NOT NULL, ` +
	`LAST_UPD INT NOT NULL, ` +
	`TAPE_ID CHAR(9), ` +
	`FILE_STATE INT NOT NULL, ` +
	`START_BLOCK INT, ` +
	`CONN_INFO BIGINT, ` +
	`CONSTRAINT JOB_QUEUE_UNIQUE_FILE_NAME UNIQUE (FILE_NAME, REPL_NUM), ` +
	`CONSTRAINT JOB_QUEUE_UNIQUE_UID UNIQUE (FS_ID, I_GEN, I_NUM, REPL_NUM))`

const requestQueueDDL = `CREATE TABLE REQUEST_QUEUE(` +
	`OPERATION INT NOT NULL, ` +
	`REQ_NUM INT NOT NULL, ` +
	`TARGET_STATE INT, ` +
	`NUM_REPL, ` +
	`REPL_NUM INT, ` +
	`TAPE_POOL VARCHAR, ` +
	`TAPE_ID CHAR(9), ` +
	`TIME_ADDED INT NOT NULL, ` +
	`STATE INT NOT NULL, ` +
	`CONSTRAINT REQUEST_QUEUE_UNIQUE UNIQUE(REQ_NUM, REPL_NUM, TAPE_POOL, TAPE_ID))`

// CreateTables builds the JOB_QUEUE and REQUEST_QUEUE schema.
func (s *Store) CreateTables() error {
	if _, err := s.Exec(jobQueueDDL); err != nil {
		return err
	}
	_, err := s.Exec(requestQueueDDL)
	return err
}

// Exec runs one mutating statement on the shared connection.
func (s *Store) Exec(query string, args ...interface{}) (sql.Result, error) {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	res, err := s.conn.ExecContext(context.Background(), query, args...)
	return res, errors.Wrapf(err, "statement failed: %s", query)
}

// Rows runs a query and streams each result row through scan. The
// result set is fully consumed before Rows returns, so callers may run
// further statements from outside scan but never from within it.
func (s *Store) Rows(query string, scan func(*sql.Rows) error, args ...interface{}) error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	rows, err := s.conn.QueryContext(context.Background(), query, args...)
	if err != nil {
		return errors.Wrapf(err, "query failed: %s", query)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return errors.Wrapf(rows.Err(), "query failed: %s", query)
}

// BeginTransaction takes the whole-database transaction lock and opens
// a transaction on the shared connection.
func (s *Store) BeginTransaction() error {
	s.txMu.Lock()
	if _, err := s.Exec("BEGIN TRANSACTION"); err != nil {
		s.txMu.Unlock()
		return err
	}
	return nil
}

// EndTransaction commits and releases the transaction lock.
func (s *Store) EndTransaction() error {
	_, err := s.Exec("END TRANSACTION")
	s.txMu.Unlock()
	return err
}

// Rollback aborts the open transaction and releases the lock.
func (s *Store) Rollback() error {
	_, err := s.Exec("ROLLBACK")
	s.txMu.Unlock()
	return err
}

// Close releases the shared connection.
func (s *Store) Close() error {
	s.conn.Close()
	return s.db.Close()
}

// Cleanup removes the store file and its journal sidecar.
func Cleanup(path string) {
	if path == "" {
		return
	}
	for _, name := range []string{path, path + "-journal"} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			debug.Printf("cleanup %s: %v", name, err)
		}
	}
}
