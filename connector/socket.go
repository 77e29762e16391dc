package connector

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intel-hpdd/logging/alert"
	"github.com/intel-hpdd/logging/audit"
	"github.com/intel-hpdd/logging/debug"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/bitinnocom/LTFS-Data-Management/protocol"
)

type (
	// SocketConnector accepts recall events as length-delimited
	// protobuf messages on a unix socket and answers them on the same
	// connection.
	SocketConnector struct {
		path      string
		key       string
		startTime time.Time

		ln      net.Listener
		events  chan RecallEvent
		stopped atomic.Bool
		wg      sync.WaitGroup

		mu         sync.Mutex
		conns      map[net.Conn]struct{}
		pending    map[Handle]*pendingEvent
		nextHandle int64
		managed    []string
	}

	pendingEvent struct {
		conn net.Conn
		uid  FileUID
	}
)

// NewSocket returns a SocketConnector listening on path once
// StartRecalls is called. The instance key is written next to the socket
// so connector clients can authenticate their events.
func NewSocket(path string) (*SocketConnector, error) {
	c := &SocketConnector{
		path:      path,
		key:       uuid.New(),
		startTime: time.Now(),
		events:    make(chan RecallEvent),
		conns:     make(map[net.Conn]struct{}),
		pending:   make(map[Handle]*pendingEvent),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create socket dir failed")
	}
	if err := os.WriteFile(c.keyFile(), []byte(c.key), 0600); err != nil {
		return nil, errors.Wrap(err, "write key file failed")
	}

	return c, nil
}

func (c *SocketConnector) keyFile() string {
	return c.path + ".key"
}

// StartTime returns the moment the connector was created.
func (c *SocketConnector) StartTime() time.Time {
	return c.startTime
}

// StartRecalls begins accepting connector clients.
func (c *SocketConnector) StartRecalls() error {
	os.Remove(c.path)

	ln, err := net.Listen("unix", c.path)
	if err != nil {
		return errors.Wrapf(err, "%s: listen failed", c.path)
	}
	c.ln = ln

	c.wg.Add(1)
	go c.accept()
	return nil
}

// ManageFs registers a filesystem root; events must refer to files
// below a managed root.
func (c *SocketConnector) ManageFs(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "%s: stat failed", path)
	}
	if !fi.IsDir() {
		return errors.Errorf("%s: not a directory", path)
	}

	c.mu.Lock()
	c.managed = append(c.managed, filepath.Clean(path))
	c.mu.Unlock()
	return nil
}

func (c *SocketConnector) accept() {
	defer c.wg.Done()

	for {
		conn, err := c.ln.Accept()
		if err != nil {
			if !c.stopped.Load() {
				alert.Warnf("accept failed: %v", err)
			}
			return
		}
		c.mu.Lock()
		c.conns[conn] = struct{}{}
		c.mu.Unlock()
		c.wg.Add(1)
		go c.handleConn(conn)
	}
}

func (c *SocketConnector) handleConn(conn net.Conn) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.conns, conn)
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		var req protocol.TransRecRequest
		err := readFrame(conn, &req)
		if err == io.EOF || c.stopped.Load() {
			return
		}
		if err != nil {
			debug.Printf("event read failed: %v", err)
			return
		}

		if req.Key != c.key {
			audit.Logf("event with bad instance key for inode %d rejected", req.Inum)
			writeFrame(conn, &protocol.TransRecResp{Key: req.Key, Success: false, Inum: req.Inum})
			continue
		}

		ev := RecallEvent{
			UID: FileUID{
				FsidHigh: req.FsidH,
				FsidLow:  req.FsidL,
				IGen:     req.Igen,
				INum:     req.Inum,
			},
			Filename:   req.Filename,
			ToResident: req.ToResident,
			Handle:     c.register(conn, req),
		}
		c.events <- ev
	}
}

func (c *SocketConnector) register(conn net.Conn, req protocol.TransRecRequest) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextHandle++
	h := Handle(c.nextHandle)
	c.pending[h] = &pendingEvent{
		conn: conn,
		uid:  FileUID{FsidHigh: req.FsidH, FsidLow: req.FsidL, IGen: req.Igen, INum: req.Inum},
	}
	return h
}

// Events blocks until the next recall event arrives. After EndRecalls it
// returns the termination sentinel.
func (c *SocketConnector) Events() (RecallEvent, error) {
	ev, ok := <-c.events
	if !ok {
		return RecallEvent{}, nil
	}
	return ev, nil
}

// Respond delivers the response for an event and releases its handle.
// A handle is released exactly once; a second response for the same
// event is dropped.
func (c *SocketConnector) Respond(ev RecallEvent, success bool) error {
	c.mu.Lock()
	pe, ok := c.pending[ev.Handle]
	delete(c.pending, ev.Handle)
	c.mu.Unlock()

	if !ok {
		debug.Printf("response for unknown handle %d dropped", ev.Handle)
		return nil
	}

	resp := &protocol.TransRecResp{
		Key:     c.key,
		Success: success,
		Inum:    pe.uid.INum,
	}
	if err := writeFrame(pe.conn, resp); err != nil {
		return errors.Wrapf(err, "respond for inode %d failed", pe.uid.INum)
	}
	return nil
}

// OpenObject opens the managed file an event refers to. Events from the
// socket connector always carry the file name.
func (c *SocketConnector) OpenObject(ev RecallEvent) (FileObject, error) {
	if ev.Filename == "" {
		return nil, errors.Errorf("inode %d: event without file name", ev.UID.INum)
	}

	name := filepath.Clean(ev.Filename)
	c.mu.Lock()
	managed := false
	for _, root := range c.managed {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			managed = true
			break
		}
	}
	c.mu.Unlock()
	if !managed {
		return nil, errors.Errorf("%s: not below a managed filesystem", name)
	}

	return openFsObject(name)
}

// EndRecalls shuts the listener down and unblocks Events with the
// termination sentinel.
func (c *SocketConnector) EndRecalls() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	if c.ln != nil {
		c.ln.Close()
	}
	c.mu.Lock()
	for conn := range c.conns {
		conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
	close(c.events)
	os.Remove(c.keyFile())
}
