package recall

import (
	"database/sql"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/intel-hpdd/logging/alert"
	"github.com/intel-hpdd/logging/audit"
	"github.com/intel-hpdd/logging/debug"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/bitinnocom/LTFS-Data-Management/connector"
	"github.com/bitinnocom/LTFS-Data-Management/inventory"
	"github.com/bitinnocom/LTFS-Data-Management/queue"
)

var recallRate = metrics.NewMeter()

// reportRate periodically logs recall throughput while bytes move.
func reportRate(done chan struct{}) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	var lastCount int64
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if c := recallRate.Count(); c != lastCount {
				audit.Logf("recalled %s bytes total (1 min/5 min/15 min): %s/%s/%s bytes/sec",
					humanize.Comma(c),
					humanize.Comma(int64(recallRate.Rate1())),
					humanize.Comma(int64(recallRate.Rate5())),
					humanize.Comma(int64(recallRate.Rate15())),
				)
				lastCount = c
			}
		}
	}
}

type (
	jobRow struct {
		ev     connector.RecallEvent
		state  connector.MigState // RecallingMig or RecallingPremig
		target connector.MigState
	}

	response struct {
		ev connector.RecallEvent
		ok bool
	}
)

// ExecRequest runs one scheduled transparent recall request: claim the
// jobs, stream the files in start-block order, then finalise the
// request under the scheduler mutex and answer the events last, after
// all store mutations.
func (tr *TransRecall) ExecRequest(reqNum int64, tapeID string) {
	debug.Printf("executing recall request %d for tape %s", reqNum, tapeID)

	resps, unprocessed := tr.processFiles(reqNum, tapeID)

	tr.sched.Lock()

	// Jobs never started because of a forced shutdown leave the
	// recalling states so the cleanup pass still answers them.
	for _, j := range unprocessed {
		prior := connector.Migrated
		if j.state == connector.RecallingPremig {
			prior = connector.Premigrated
		}
		if _, err := tr.store.Exec(resetJobSQL, prior, reqNum, tapeID,
			j.ev.UID.FsID(), j.ev.UID.IGen, j.ev.UID.INum); err != nil {
			alert.Warnf("inode %d: job reset failed: %v", j.ev.UID.INum, err)
		}
	}

	if _, err := tr.store.Exec(deleteJobsSQL, reqNum,
		connector.RecallingMig, connector.RecallingPremig, tapeID); err != nil {
		alert.Warnf("request %d: deleting jobs failed: %v", reqNum, err)
	}

	if cart := tr.inv.Cartridge(tapeID); cart != nil {
		cart.SetState(inventory.TapeMounted)
		for _, d := range tr.inv.Drives() {
			if d.Slot() == cart.Slot() {
				d.SetFree()
				break
			}
		}
	}

	remaining := 0
	err := tr.store.Rows(countRemainingSQL, func(rows *sql.Rows) error {
		return rows.Scan(&remaining)
	}, reqNum, tapeID)
	if err != nil {
		alert.Warnf("request %d: counting jobs failed: %v", reqNum, err)
	}

	if remaining > 0 {
		_, err = tr.store.Exec(setRequestNewSQL, queue.ReqNew, reqNum, tapeID)
	} else {
		_, err = tr.store.Exec(deleteRequestSQL, reqNum, tapeID)
	}
	if err != nil {
		alert.Warnf("request %d: %v", reqNum, err)
	}

	tr.sched.Signal()
	tr.sched.Unlock()

	for _, r := range resps {
		tr.conn.Respond(r.ev, r.ok)
	}
}

// processFiles claims every queued job of the request and recalls the
// claimed files in ascending start-block order. Jobs inserted after the
// claim are served by a later execution of the request.
func (tr *TransRecall) processFiles(reqNum int64, tapeID string) ([]response, []jobRow) {
	tr.sched.Lock()
	_, err := tr.store.Exec(setRecallingSQL, connector.RecallingMig, reqNum, connector.Migrated, tapeID)
	if err == nil {
		_, err = tr.store.Exec(setRecallingSQL, connector.RecallingPremig, reqNum, connector.Premigrated, tapeID)
	}
	tr.sched.Unlock()
	if err != nil {
		alert.Warnf("request %d: claiming jobs failed: %v", reqNum, err)
		return nil, nil
	}

	var jobs []jobRow
	err = tr.store.Rows(selectJobsSQL, func(rows *sql.Rows) error {
		var (
			fsid     int64
			name     sql.NullString
			state    int32
			target   int32
			connInfo int64
			j        jobRow
		)
		if err := rows.Scan(&fsid, &j.ev.UID.IGen, &j.ev.UID.INum,
			&name, &state, &target, &connInfo); err != nil {
			return err
		}
		j.ev.UID.FsidHigh, j.ev.UID.FsidLow = connector.FsidParts(fsid)
		j.ev.Filename = name.String
		j.ev.Handle = connector.Handle(connInfo)
		j.state = connector.MigState(state)
		j.target = connector.MigState(target)
		j.ev.ToResident = j.target == connector.Resident
		jobs = append(jobs, j)
		return nil
	}, reqNum, connector.RecallingMig, connector.RecallingPremig, tapeID)
	if err != nil {
		alert.Warnf("request %d: selecting jobs failed: %v", reqNum, err)
		return nil, nil
	}

	var resps []response
	for i, j := range jobs {
		if tr.flags.Forced() {
			return resps, jobs[i:]
		}

		from := connector.Migrated
		if j.state == connector.RecallingPremig {
			from = connector.Premigrated
		}

		err := tr.recallFile(j.ev, tapeID, from, j.target)
		if err != nil {
			debug.Printf("inode %d: recall failed: %v", j.ev.UID.INum, err)
		}
		resps = append(resps, response{ev: j.ev, ok: err == nil})
	}
	debug.Printf("request %d: %d files processed", reqNum, len(resps))
	return resps, nil
}

// recallFile streams one file back from tape and finalises its state.
// When the copy on tape disagrees with the stub size, the tape wins and
// the file is forced resident rather than left premigrated with
// mismatched sizes.
func (tr *TransRecall) recallFile(ev connector.RecallEvent, tapeID string,
	state, toState connector.MigState) error {

	target, err := tr.conn.OpenObject(ev)
	if err != nil {
		return err
	}
	defer target.Close()

	if err = target.Lock(); err != nil {
		return err
	}
	defer target.Unlock()

	// the state may have drifted, e.g. a concurrent recall finished
	curstate, err := target.MigState()
	if err != nil {
		return err
	}
	if curstate != state {
		audit.Logf("inode %d: migration state changed to %s", ev.UID.INum, curstate)
		state = curstate
	}

	if state == connector.Resident {
		return nil
	}

	if state == connector.Migrated {
		tapeName := tr.inv.TapeName(ev.UID, tapeID)
		tape, err := os.OpenFile(tapeName, os.O_RDWR, 0)
		if err != nil {
			alert.Warnf("%s: opening tape copy failed: %v", tapeName, err)
			return errors.Wrapf(err, "%s: open failed", tapeName)
		}
		defer tape.Close()

		fi, err := target.Stat()
		if err != nil {
			return err
		}
		size := fi.Size()

		if ti, err := tape.Stat(); err == nil && ti.Size() != size {
			alert.Warnf("inode %d: file size %d and tape copy size %d differ, recalling the tape copy",
				ev.UID.INum, size, ti.Size())
			size = ti.Size()
			toState = connector.Resident
		}

		if err = target.PrepareRecall(); err != nil {
			return err
		}

		buf := make([]byte, tr.cfg.BufferSize)
		var offset int64
		for offset < size {
			if tr.flags.Forced() {
				return errors.Errorf("%s: recall aborted by shutdown", tapeName)
			}

			n, rerr := tape.Read(buf)
			if n > 0 {
				w, werr := target.WriteAt(buf[:n], offset)
				if werr != nil {
					return errors.Wrapf(werr, "inode %d: write failed", ev.UID.INum)
				}
				if w != n {
					return errors.Errorf("inode %d: short write (%d < %d)", ev.UID.INum, w, n)
				}
				offset += int64(n)
				recallRate.Mark(int64(n))
			}
			if rerr == io.EOF || (rerr == nil && n == 0) {
				break
			}
			if rerr != nil {
				alert.Warnf("%s: reading tape copy failed: %v", tapeName, rerr)
				return errors.Wrapf(rerr, "%s: read failed", tapeName)
			}
		}
	}

	if err = target.FinishRecall(toState); err != nil {
		return err
	}
	if toState == connector.Resident {
		return target.RemoveAttributes()
	}
	return nil
}
