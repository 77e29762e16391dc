package connector

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type (
	// TestResponse records one delivered response.
	TestResponse struct {
		Event   RecallEvent
		Success bool
	}

	// TestConnector is an in-memory Connector for exercising the
	// recall core without a filesystem.
	TestConnector struct {
		mu         sync.Mutex
		objects    map[FileUID]*TestFileObject
		responses  []TestResponse
		finished   []uint64
		managed    []string
		events     chan RecallEvent
		nextHandle Handle
		ended      bool
	}

	// TestFileObject is an in-memory managed file. The advisory lock
	// taken by Lock/Unlock is separate from the field mutex so state
	// reads and writes remain usable while the file is locked.
	TestFileObject struct {
		mu sync.Mutex
		lk sync.Mutex
		tc *TestConnector

		UID          FileUID
		State        MigState
		Tapes        []string
		Size         int64
		MTime        time.Time
		Data         []byte
		AttrsRemoved bool
		Prepared     bool

		// WriteHook runs after every WriteAt, e.g. to trip the
		// forced-terminate flag mid-stream.
		WriteHook func(off int64)

		// StatErr makes Stat fail.
		StatErr error

		mode os.FileMode
	}

	testFileInfo struct {
		size  int64
		mtime time.Time
		mode  os.FileMode
	}
)

// NewTest returns an empty TestConnector.
func NewTest() *TestConnector {
	return &TestConnector{
		objects: make(map[FileUID]*TestFileObject),
		events:  make(chan RecallEvent, 64),
	}
}

// AddFile registers an in-memory file and returns its object.
func (tc *TestConnector) AddFile(uid FileUID, state MigState, size int64, tapes ...string) *TestFileObject {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	o := &TestFileObject{
		tc:    tc,
		UID:   uid,
		State: state,
		Tapes: tapes,
		Size:  size,
		MTime: time.Now(),
		mode:  0644,
	}
	tc.objects[uid] = o
	return o
}

// AddSpecial registers a non-regular file.
func (tc *TestConnector) AddSpecial(uid FileUID) *TestFileObject {
	o := tc.AddFile(uid, Resident, 0)
	o.mode = os.ModeDir | 0755
	return o
}

// Inject queues one recall event and returns it with its handle
// assigned.
func (tc *TestConnector) Inject(uid FileUID, name string, toResident bool) RecallEvent {
	tc.mu.Lock()
	tc.nextHandle++
	ev := RecallEvent{
		UID:        uid,
		Filename:   name,
		ToResident: toResident,
		Handle:     tc.nextHandle,
	}
	tc.mu.Unlock()

	tc.events <- ev
	return ev
}

func (tc *TestConnector) StartRecalls() error { return nil }

func (tc *TestConnector) ManageFs(path string) error {
	tc.mu.Lock()
	tc.managed = append(tc.managed, path)
	tc.mu.Unlock()
	return nil
}

func (tc *TestConnector) Events() (RecallEvent, error) {
	ev, ok := <-tc.events
	if !ok {
		return RecallEvent{}, nil
	}
	return ev, nil
}

func (tc *TestConnector) Respond(ev RecallEvent, success bool) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.responses = append(tc.responses, TestResponse{Event: ev, Success: success})
	return nil
}

func (tc *TestConnector) OpenObject(ev RecallEvent) (FileObject, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	o, ok := tc.objects[ev.UID]
	if !ok {
		return nil, errors.Errorf("inode %d: no such object", ev.UID.INum)
	}
	return o, nil
}

func (tc *TestConnector) EndRecalls() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.ended {
		tc.ended = true
		close(tc.events)
	}
}

// Responses returns the responses delivered so far.
func (tc *TestConnector) Responses() []TestResponse {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]TestResponse, len(tc.responses))
	copy(out, tc.responses)
	return out
}

// WaitResponses blocks until n responses arrived or the timeout
// expired.
func (tc *TestConnector) WaitResponses(n int, timeout time.Duration) []TestResponse {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rs := tc.Responses(); len(rs) >= n {
			return rs
		}
		time.Sleep(5 * time.Millisecond)
	}
	return tc.Responses()
}

// FinishOrder returns the inode numbers in recall completion order.
func (tc *TestConnector) FinishOrder() []uint64 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]uint64, len(tc.finished))
	copy(out, tc.finished)
	return out
}

func (o *TestFileObject) Stat() (os.FileInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.StatErr != nil {
		return nil, o.StatErr
	}
	return &testFileInfo{size: o.Size, mtime: o.MTime, mode: o.mode}, nil
}

func (o *TestFileObject) MigState() (MigState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.State, nil
}

func (o *TestFileObject) Attributes() (MigAttr, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Tapes) == 0 {
		return MigAttr{}, errors.Errorf("inode %d: malformed attribute", o.UID.INum)
	}
	return MigAttr{TapeIDs: o.Tapes}, nil
}

func (o *TestFileObject) Lock() error   { o.lk.Lock(); return nil }
func (o *TestFileObject) Unlock() error { o.lk.Unlock(); return nil }

func (o *TestFileObject) PrepareRecall() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Prepared = true
	o.Data = nil
	return nil
}

func (o *TestFileObject) WriteAt(p []byte, off int64) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if need := off + int64(len(p)); int64(len(o.Data)) < need {
		grown := make([]byte, need)
		copy(grown, o.Data)
		o.Data = grown
	}
	copy(o.Data[off:], p)
	if o.WriteHook != nil {
		o.WriteHook(off)
	}
	return len(p), nil
}

func (o *TestFileObject) FinishRecall(state MigState) error {
	o.mu.Lock()
	o.State = state
	o.mu.Unlock()

	o.tc.mu.Lock()
	o.tc.finished = append(o.tc.finished, o.UID.INum)
	o.tc.mu.Unlock()
	return nil
}

func (o *TestFileObject) RemoveAttributes() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.AttrsRemoved = true
	o.Tapes = nil
	return nil
}

func (o *TestFileObject) Close() error { return nil }

func (fi *testFileInfo) Name() string       { return "testfile" }
func (fi *testFileInfo) Size() int64        { return fi.size }
func (fi *testFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *testFileInfo) ModTime() time.Time { return fi.mtime }
func (fi *testFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *testFileInfo) Sys() interface{}   { return nil }
