// Package scheduler owns the process-wide scheduling state: the
// scheduler mutex and condition, the tape to request-number map, the
// request-number counter, and the loop that binds tape and drive
// resources to REQ_NEW requests.
package scheduler

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/intel-hpdd/logging/alert"
	"github.com/intel-hpdd/logging/audit"
	"github.com/intel-hpdd/logging/debug"
	"golang.org/x/net/context"

	"github.com/bitinnocom/LTFS-Data-Management/inventory"
	"github.com/bitinnocom/LTFS-Data-Management/queue"
)

type (
	// RunnerFunc executes one scheduled request. The scheduler
	// guarantees at most one in-flight run per (reqNum, tapeID).
	RunnerFunc func(reqNum int64, tapeID string)

	reqKey struct {
		reqNum int64
		tapeID string
	}

	// Scheduler selects schedulable requests and dispatches them to
	// the runner registered for their operation.
	Scheduler struct {
		store *queue.Store
		inv   inventory.Inventory

		mu   sync.Mutex
		cond *sync.Cond

		runners  map[queue.Operation]RunnerFunc
		reqMap   map[string]int64
		reqNum   int64
		inflight map[reqKey]bool
		stopped  bool
		wg       sync.WaitGroup
	}
)

// New returns a Scheduler over the given store and inventory.
func New(store *queue.Store, inv inventory.Inventory) *Scheduler {
	s := &Scheduler{
		store:    store,
		inv:      inv,
		runners:  make(map[queue.Operation]RunnerFunc),
		reqMap:   make(map[string]int64),
		inflight: make(map[reqKey]bool),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RegisterRunner installs the executor for one operation kind.
func (s *Scheduler) RegisterRunner(op queue.Operation, fn RunnerFunc) {
	s.mu.Lock()
	s.runners[op] = fn
	s.mu.Unlock()
}

// Lock takes the scheduler mutex. Request-state transitions in the
// store happen under it.
func (s *Scheduler) Lock() { s.mu.Lock() }

// Unlock releases the scheduler mutex.
func (s *Scheduler) Unlock() { s.mu.Unlock() }

// Signal wakes the scheduling loop. Callers hold the scheduler mutex,
// having just moved a request into a schedulable state.
func (s *Scheduler) Signal() { s.cond.Broadcast() }

// ReserveRequest returns the request number bound to a tape, assigning
// the next number from the global counter on first use. Bindings live
// for the process lifetime so all jobs for one tape coalesce into the
// same request.
func (s *Scheduler) ReserveRequest(tapeID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.reqMap[tapeID]; ok {
		return n
	}
	s.reqNum++
	s.reqMap[tapeID] = s.reqNum
	return s.reqNum
}

// Run drives scheduling until Stop is called or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.mu.Lock()
	for !s.stopped {
		if n := s.selectRequests(); n == 0 {
			s.cond.Wait()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	debug.Printf("scheduler stopped")
}

// Stop ends the scheduling loop. It does not wait for in-flight
// requests; Run waits for them before it returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

const selectRequestSQL = `SELECT OPERATION, REQ_NUM, TAPE_ID FROM REQUEST_QUEUE ` +
	`WHERE STATE=? ORDER BY TIME_ADDED, ROWID`

const setRequestStateSQL = `UPDATE REQUEST_QUEUE SET STATE=? ` +
	`WHERE REQ_NUM=? AND TAPE_ID=?`

// selectRequests dispatches every REQ_NEW request whose resources are
// available. Called with the scheduler mutex held.
func (s *Scheduler) selectRequests() int {
	type cand struct {
		op     queue.Operation
		reqNum int64
		tapeID string
	}
	var cands []cand

	err := s.store.Rows(selectRequestSQL, func(rows *sql.Rows) error {
		var c cand
		if err := rows.Scan(&c.op, &c.reqNum, &c.tapeID); err != nil {
			return err
		}
		cands = append(cands, c)
		return nil
	}, queue.ReqNew)
	if err != nil {
		alert.Warnf("request selection failed: %v", err)
		return 0
	}

	dispatched := 0
	for _, c := range cands {
		fn, ok := s.runners[c.op]
		if !ok {
			continue
		}
		k := reqKey{c.reqNum, c.tapeID}
		if s.inflight[k] {
			continue
		}
		if !s.tapeResAvail(c.tapeID) {
			continue
		}

		if _, err := s.store.Exec(setRequestStateSQL, queue.ReqInProgress, c.reqNum, c.tapeID); err != nil {
			alert.Warnf("request %d: %v", c.reqNum, err)
			continue
		}
		s.inflight[k] = true
		audit.Logf("scheduling %s request %d for tape %s", c.op, c.reqNum, c.tapeID)

		s.wg.Add(1)
		go func(k reqKey, fn RunnerFunc) {
			defer s.wg.Done()
			fn(k.reqNum, k.tapeID)
			s.mu.Lock()
			delete(s.inflight, k)
			s.cond.Broadcast()
			s.mu.Unlock()
		}(k, fn)
		dispatched++
	}
	return dispatched
}

// tapeResAvail claims the tape and a drive for one request. A mounted
// idle cartridge is taken over directly; an unmounted one needs a free
// drive to mount on.
func (s *Scheduler) tapeResAvail(tapeID string) bool {
	cart := s.inv.Cartridge(tapeID)
	if cart == nil {
		alert.Warnf("request for unknown cartridge %s", tapeID)
		return false
	}

	switch cart.State() {
	case inventory.TapeMounted:
		for _, d := range s.inv.Drives() {
			if d.Slot() == cart.Slot() {
				d.SetBusy()
				cart.SetState(inventory.TapeInUse)
				return true
			}
		}
		return false
	case inventory.TapeUnmounted:
		for _, d := range s.inv.Drives() {
			if !d.Free() {
				continue
			}
			if err := s.inv.Mount(d.ID(), tapeID); err != nil {
				debug.Printf("mount %s on %s: %v", tapeID, d.ID(), err)
				continue
			}
			return true
		}
		return false
	default:
		return false
	}
}

func (k reqKey) String() string {
	return fmt.Sprintf("%d/%s", k.reqNum, k.tapeID)
}
