// Package recall implements transparent recall: staging file contents
// back from tape when an application touches a migrated or premigrated
// file. Events arrive through a connector, coalesce into per-tape
// requests in the queue store, and are executed in on-tape order once
// the scheduler binds the tape and drive.
package recall

import (
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intel-hpdd/logging/alert"
	"github.com/intel-hpdd/logging/audit"
	"github.com/intel-hpdd/logging/debug"
	"github.com/pkg/errors"

	"github.com/bitinnocom/LTFS-Data-Management/connector"
	"github.com/bitinnocom/LTFS-Data-Management/inventory"
	"github.com/bitinnocom/LTFS-Data-Management/queue"
	"github.com/bitinnocom/LTFS-Data-Management/scheduler"
)

const (
	// MaxTransparentRecallThreads bounds the job writer pool.
	MaxTransparentRecallThreads = 32

	// ReadBufferSize is the chunk size for streaming from tape.
	ReadBufferSize = 512 * 1024
)

type (
	// Flags is the process-wide termination state. The graceful flag
	// stops event intake; the forced flag additionally aborts the
	// tape copy in progress.
	Flags struct {
		terminate atomic.Bool
		forced    atomic.Bool
	}

	// Config tunes one TransRecall instance.
	Config struct {
		Threads     int
		BufferSize  int
		Filesystems []string
	}

	writerTask struct {
		ev     connector.RecallEvent
		tapeID string
		reqNum int64
	}

	// TransRecall is the transparent recall core: the event receiver,
	// the job writer pool, and the recall executor.
	TransRecall struct {
		store *queue.Store
		sched *scheduler.Scheduler
		conn  connector.Connector
		inv   inventory.Inventory
		flags *Flags
		cfg   Config

		tasks chan writerTask
		wg    sync.WaitGroup
	}
)

// SetTerminate requests a graceful shutdown.
func (f *Flags) SetTerminate() { f.terminate.Store(true) }

// Terminating reports whether a shutdown was requested.
func (f *Flags) Terminating() bool { return f.terminate.Load() }

// SetForced requests an immediate shutdown, aborting tape copies.
func (f *Flags) SetForced() {
	f.terminate.Store(true)
	f.forced.Store(true)
}

// Forced reports whether streaming must be aborted.
func (f *Flags) Forced() bool { return f.forced.Load() }

// New returns a TransRecall wired to its collaborators. The runner for
// transparent recall requests is registered with the scheduler.
func New(store *queue.Store, sched *scheduler.Scheduler, conn connector.Connector,
	inv inventory.Inventory, flags *Flags, cfg Config) *TransRecall {

	if cfg.Threads <= 0 {
		cfg.Threads = MaxTransparentRecallThreads
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = ReadBufferSize
	}

	tr := &TransRecall{
		store: store,
		sched: sched,
		conn:  conn,
		inv:   inv,
		flags: flags,
		cfg:   cfg,
		tasks: make(chan writerTask),
	}
	sched.RegisterRunner(queue.TraRecall, tr.ExecRequest)
	return tr
}

// Stop requests shutdown of the receiver loop. Run drains the writer
// pool and answers leftover events before it returns.
func (tr *TransRecall) Stop() {
	tr.flags.SetTerminate()
	tr.conn.EndRecalls()
}

// Run receives recall events until shutdown. Every accepted event is
// answered exactly once: by the writer path, by the executor, or by the
// cleanup pass on the way out. The one exception is an event for a
// non-regular file, which the writer drops without a response.
func (tr *TransRecall) Run() error {
	if err := tr.conn.StartRecalls(); err != nil {
		return errors.Wrap(err, "starting recall events failed")
	}

	for _, fs := range tr.cfg.Filesystems {
		if err := tr.conn.ManageFs(fs); err != nil {
			alert.Warnf("%s: not manageable: %v", fs, err)
			continue
		}
		audit.Logf("managing filesystem %s", fs)
	}

	for i := 0; i < tr.cfg.Threads; i++ {
		tr.wg.Add(1)
		go func() {
			defer tr.wg.Done()
			for t := range tr.tasks {
				tr.addJob(t.ev, t.tapeID, t.reqNum)
			}
		}()
	}

	reporterDone := make(chan struct{})
	go reportRate(reporterDone)

	for {
		ev, err := tr.conn.Events()
		if err != nil {
			if tr.flags.Terminating() {
				break
			}
			alert.Warnf("receiving recall event failed: %v", err)
			continue
		}

		// zero handle is the termination sentinel
		if ev.Handle == 0 {
			if tr.flags.Terminating() {
				break
			}
			debug.Printf("sentinel event for inode %d ignored", ev.UID.INum)
			continue
		}

		if tr.flags.Terminating() {
			tr.conn.Respond(ev, false)
			continue
		}

		if ev.UID.INum == 0 {
			debug.Printf("malformed event without inode number")
			continue
		}

		fso, err := tr.conn.OpenObject(ev)
		if err != nil {
			debug.Printf("inode %d: %v", ev.UID.INum, err)
			tr.conn.Respond(ev, false)
			continue
		}

		state, err := fso.MigState()
		if err != nil {
			fso.Close()
			alert.Warnf("inode %d: reading migration state failed: %v", ev.UID.INum, err)
			tr.conn.Respond(ev, false)
			continue
		}

		if state == connector.Resident {
			fso.FinishRecall(connector.Resident)
			fso.Close()
			audit.Logf("inode %d is already resident", ev.UID.INum)
			tr.conn.Respond(ev, true)
			continue
		}

		attr, err := fso.Attributes()
		fso.Close()
		if err != nil {
			alert.Warnf("inode %d: reading migration attribute failed: %v", ev.UID.INum, err)
			tr.conn.Respond(ev, false)
			continue
		}

		// recall from the first tape listed, no replica selection
		tapeID := attr.TapeIDs[0]
		reqNum := tr.sched.ReserveRequest(tapeID)
		debug.Printf("inode %d: tape %s request %d", ev.UID.INum, tapeID, reqNum)

		tr.tasks <- writerTask{ev: ev, tapeID: tapeID, reqNum: reqNum}
	}

	audit.Logf("stopping transparent recall processing")
	tr.conn.EndRecalls()
	close(tr.tasks)
	tr.wg.Wait()
	tr.cleanupEvents()
	close(reporterDone)
	audit.Logf("transparent recall processing stopped")
	return nil
}

// addJob inserts the job row for one event and creates or re-activates
// the per-tape request. The request upsert and the scheduler signal
// happen under the scheduler mutex so a REQ_NEW request is never
// observed without its job.
func (tr *TransRecall) addJob(ev connector.RecallEvent, tapeID string, reqNum int64) {
	fso, err := tr.conn.OpenObject(ev)
	if err != nil {
		alert.Warnf("inode %d: %v", ev.UID.INum, err)
		tr.conn.Respond(ev, false)
		return
	}

	fi, err := fso.Stat()
	if err != nil {
		fso.Close()
		alert.Warnf("inode %d: stat failed: %v", ev.UID.INum, err)
		tr.conn.Respond(ev, false)
		return
	}

	if !fi.Mode().IsRegular() {
		fso.Close()
		alert.Warnf("inode %d: not a regular file", ev.UID.INum)
		return
	}

	state, err := fso.MigState()
	fso.Close()
	if err != nil {
		alert.Warnf("inode %d: reading migration state failed: %v", ev.UID.INum, err)
		tr.conn.Respond(ev, false)
		return
	}

	target := connector.Premigrated
	if ev.ToResident {
		target = connector.Resident
	}

	tapeName := tr.inv.TapeName(ev.UID, tapeID)
	startBlock := tr.inv.StartBlock(tapeName)

	var name interface{}
	if ev.Filename != "" {
		name = ev.Filename
	}

	now := time.Now().Unix()
	_, err = tr.store.Exec(addJobSQL,
		queue.TraRecall, name, reqNum, target, queue.ReplUnset, nil,
		fi.Size(), ev.UID.FsID(), ev.UID.IGen, ev.UID.INum,
		fi.ModTime().Unix(), fi.ModTime().Nanosecond(), now,
		tapeID, state, startBlock, int64(ev.Handle))
	if err != nil {
		alert.Warnf("inode %d: adding job failed: %v", ev.UID.INum, err)
		return
	}
	debug.Printf("inode %d: job added, request %d tape %s block %d",
		ev.UID.INum, reqNum, tapeID, startBlock)

	tr.sched.Lock()
	defer tr.sched.Unlock()

	reqExists := false
	err = tr.store.Rows(checkRequestSQL, func(rows *sql.Rows) error {
		var n int64
		reqExists = true
		return rows.Scan(&n)
	}, reqNum)
	if err != nil {
		alert.Warnf("request %d: lookup failed: %v", reqNum, err)
		return
	}

	if reqExists {
		_, err = tr.store.Exec(setRequestNewSQL, queue.ReqNew, reqNum, tapeID)
	} else {
		_, err = tr.store.Exec(addRequestSQL, queue.TraRecall, reqNum, tapeID, now, queue.ReqNew)
	}
	if err != nil {
		alert.Warnf("request %d: %v", reqNum, err)
		return
	}
	tr.sched.Signal()
}

// cleanupEvents answers every event that still has a job row on the way
// out. Undelivered responses from a crashed execution end up here as
// failures.
func (tr *TransRecall) cleanupEvents() {
	var evs []connector.RecallEvent

	err := tr.store.Rows(remainingJobsSQL, func(rows *sql.Rows) error {
		var (
			fsid     int64
			name     sql.NullString
			connInfo int64
			ev       connector.RecallEvent
		)
		if err := rows.Scan(&fsid, &ev.UID.IGen, &ev.UID.INum, &name, &connInfo); err != nil {
			return err
		}
		ev.UID.FsidHigh, ev.UID.FsidLow = connector.FsidParts(fsid)
		ev.Filename = name.String
		ev.Handle = connector.Handle(connInfo)
		evs = append(evs, ev)
		return nil
	}, queue.TraRecall)
	if err != nil {
		alert.Warnf("event cleanup failed: %v", err)
		return
	}

	for _, ev := range evs {
		audit.Logf("failing unserved recall of inode %d on shutdown", ev.UID.INum)
		tr.conn.Respond(ev, false)
	}
}
