// Package server assembles the transparent recall core: queue store,
// connector, inventory, scheduler and recall processing, with the
// process-wide termination flags.
package server

import (
	"sync"

	"github.com/intel-hpdd/logging/audit"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/bitinnocom/LTFS-Data-Management/connector"
	"github.com/bitinnocom/LTFS-Data-Management/inventory"
	"github.com/bitinnocom/LTFS-Data-Management/queue"
	"github.com/bitinnocom/LTFS-Data-Management/recall"
	"github.com/bitinnocom/LTFS-Data-Management/scheduler"
)

// Server is one daemon instance.
type Server struct {
	cfg   *Config
	flags *recall.Flags

	store *queue.Store
	conn  connector.Connector
	inv   inventory.Inventory
	sched *scheduler.Scheduler
	tr    *recall.TransRecall

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Server from its configuration. A leftover store from a
// previous run is removed first; its undelivered events were already
// answered by that run's cleanup pass or are unrecoverable.
func New(cfg *Config) (*Server, error) {
	queue.Cleanup(cfg.DBFile)

	store, err := queue.Open(cfg.DBFile)
	if err != nil {
		return nil, err
	}
	if err := store.CreateTables(); err != nil {
		store.Close()
		return nil, err
	}

	conn, err := connector.NewSocket(cfg.Socket)
	if err != nil {
		store.Close()
		return nil, err
	}

	inv, err := inventory.NewLTFS(cfg.LTFSRoot, cfg.NumDrives)
	if err != nil {
		store.Close()
		return nil, err
	}

	flags := &recall.Flags{}
	sched := scheduler.New(store, inv)
	tr := recall.New(store, sched, conn, inv, flags, recall.Config{
		Threads:     cfg.RecallThreads,
		BufferSize:  cfg.ReadBufferSize,
		Filesystems: cfg.Filesystems,
	})

	return &Server{
		cfg:   cfg,
		flags: flags,
		store: store,
		conn:  conn,
		inv:   inv,
		sched: sched,
		tr:    tr,
	}, nil
}

// Start runs the scheduler and the recall receiver until Stop.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sched.Run(ctx)
	}()

	audit.Logf("transparent recall server started")
	err := s.tr.Run()

	s.cancel()
	s.wg.Wait()
	s.store.Close()
	queue.Cleanup(s.cfg.DBFile)
	audit.Logf("transparent recall server stopped")
	return errors.Wrap(err, "recall processing failed")
}

// Stop requests a graceful shutdown: in-flight requests finish, then
// the cleanup pass answers every event that still has a job.
func (s *Server) Stop() {
	audit.Logf("shutdown requested")
	s.tr.Stop()
}

// Kill requests an immediate shutdown, aborting the tape copy in
// progress.
func (s *Server) Kill() {
	audit.Logf("forced shutdown requested")
	s.flags.SetForced()
	s.tr.Stop()
}
