package connector

import (
	"encoding/binary"
	"io"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// maxFrameSize bounds a single event message. Requests carry at most a
// path name, so anything larger is a framing error, not a big message.
const maxFrameSize = 64 * 1024

// writeFrame sends one length-delimited protobuf message.
func writeFrame(w io.Writer, msg proto.Message) error {
	buf, err := proto.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal failed")
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(buf)))
	if _, err = w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "write frame header failed")
	}
	if _, err = w.Write(buf); err != nil {
		return errors.Wrap(err, "write frame body failed")
	}
	return nil
}

// readFrame receives one length-delimited protobuf message.
func readFrame(r io.Reader, msg proto.Message) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return errors.Errorf("frame of %d bytes exceeds limit", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.Wrap(err, "read frame body failed")
	}
	return errors.Wrap(proto.Unmarshal(buf, msg), "unmarshal failed")
}
