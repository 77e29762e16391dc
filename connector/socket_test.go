package connector

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/bitinnocom/LTFS-Data-Management/internal/testhelpers"
	"github.com/bitinnocom/LTFS-Data-Management/protocol"
)

func startSocket(t *testing.T) (*SocketConnector, string) {
	tdir, cleanDir := testhelpers.TempDir(t)
	t.Cleanup(cleanDir)

	path := filepath.Join(tdir, "transrecall.sock")
	c, err := NewSocket(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.StartRecalls(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.EndRecalls)
	return c, path
}

func instanceKey(t *testing.T, path string) string {
	key, err := os.ReadFile(path + ".key")
	if err != nil {
		t.Fatal(err)
	}
	return string(key)
}

func TestSocketEventRoundTrip(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	c, path := startSocket(t)
	key := instanceKey(t, path)

	client, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	req := &protocol.TransRecRequest{
		Key:        key,
		ToResident: true,
		FsidH:      1,
		FsidL:      2,
		Igen:       3,
		Inum:       42,
		Filename:   "/mnt/fs0/file",
	}
	if err := writeFrame(client, req); err != nil {
		t.Fatal(err)
	}

	ev, err := c.Events()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Handle == 0 {
		t.Fatal("got termination sentinel instead of event")
	}
	if ev.UID.INum != 42 || ev.UID.FsidHigh != 1 || ev.UID.FsidLow != 2 ||
		ev.UID.IGen != 3 || !ev.ToResident || ev.Filename != "/mnt/fs0/file" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if err := c.Respond(ev, true); err != nil {
		t.Fatal(err)
	}

	var resp protocol.TransRecResp
	if err := readFrame(client, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Inum != 42 {
		t.Fatalf("unexpected response: %+v", &resp)
	}

	// a handle is released exactly once
	if err := c.Respond(ev, false); err != nil {
		t.Fatal(err)
	}
}

func TestSocketRejectsBadKey(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	c, path := startSocket(t)

	client, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	req := &protocol.TransRecRequest{Key: "wrong", Inum: 42}
	if err := writeFrame(client, req); err != nil {
		t.Fatal(err)
	}

	// rejected without reaching the event loop
	var resp protocol.TransRecResp
	if err := readFrame(client, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("bad key must be answered with failure")
	}

	select {
	case ev := <-eventsOf(c):
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func eventsOf(c *SocketConnector) chan RecallEvent {
	return c.events
}

func TestSocketSentinelOnEnd(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	c, _ := startSocket(t)

	done := make(chan RecallEvent, 1)
	go func() {
		ev, _ := c.Events()
		done <- ev
	}()

	c.EndRecalls()

	select {
	case ev := <-done:
		if ev.Handle != 0 {
			t.Fatalf("expected termination sentinel, have %+v", ev)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Events never unblocked")
	}
}
