package connector

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Migration metadata lives in two extended attributes on the managed
// file. The state attribute holds the numeric MigState; a file without
// it is resident.
const (
	attrState = "user.ltfsdm.state"
	attrTapes = "user.ltfsdm.tapeinfo"
)

// fsObject is a managed file on a local filesystem.
type fsObject struct {
	path string
	f    *os.File
}

func openFsObject(path string) (*fsObject, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: open failed", path)
	}
	return &fsObject{path: path, f: f}, nil
}

func (o *fsObject) Stat() (os.FileInfo, error) {
	fi, err := o.f.Stat()
	return fi, errors.Wrapf(err, "%s: stat failed", o.path)
}

func (o *fsObject) getxattr(name string) ([]byte, error) {
	buf := make([]byte, 256)
	n, err := unix.Fgetxattr(int(o.f.Fd()), name, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (o *fsObject) MigState() (MigState, error) {
	buf, err := o.getxattr(attrState)
	if err == unix.ENODATA {
		return Resident, nil
	}
	if err != nil {
		return Resident, errors.Wrapf(err, "%s: read state failed", o.path)
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(buf)))
	if err != nil || v < int(Resident) || v > int(RecallingPremig) {
		return Resident, errors.Errorf("%s: malformed state attribute %q", o.path, buf)
	}
	return MigState(v), nil
}

func (o *fsObject) Attributes() (MigAttr, error) {
	buf, err := o.getxattr(attrTapes)
	if err != nil {
		return MigAttr{}, errors.Wrapf(err, "%s: read attribute failed", o.path)
	}

	var attr MigAttr
	for _, id := range strings.Split(string(buf), ",") {
		if id = strings.TrimSpace(id); id != "" {
			attr.TapeIDs = append(attr.TapeIDs, id)
		}
	}
	if len(attr.TapeIDs) == 0 {
		return MigAttr{}, errors.Errorf("%s: malformed tape attribute %q", o.path, buf)
	}
	return attr, nil
}

func (o *fsObject) Lock() error {
	return errors.Wrapf(unix.Flock(int(o.f.Fd()), unix.LOCK_EX), "%s: lock failed", o.path)
}

func (o *fsObject) Unlock() error {
	return errors.Wrapf(unix.Flock(int(o.f.Fd()), unix.LOCK_UN), "%s: unlock failed", o.path)
}

// PrepareRecall drops the stub contents so the tape copy lands in an
// empty file.
func (o *fsObject) PrepareRecall() error {
	return errors.Wrapf(unix.Ftruncate(int(o.f.Fd()), 0), "%s: truncate failed", o.path)
}

func (o *fsObject) WriteAt(p []byte, off int64) (int, error) {
	return o.f.WriteAt(p, off)
}

func (o *fsObject) FinishRecall(state MigState) error {
	v := []byte(strconv.Itoa(int(state)))
	err := unix.Fsetxattr(int(o.f.Fd()), attrState, v, 0)
	return errors.Wrapf(err, "%s: finish recall failed", o.path)
}

func (o *fsObject) RemoveAttributes() error {
	fd := int(o.f.Fd())
	for _, name := range []string{attrState, attrTapes} {
		if err := unix.Fremovexattr(fd, name); err != nil && err != unix.ENODATA {
			return errors.Wrapf(err, "%s: remove %s failed", o.path, name)
		}
	}
	return nil
}

func (o *fsObject) Close() error {
	return o.f.Close()
}
