// Package testhelpers carries small filesystem helpers shared by the
// package tests.
package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
)

var testPrefix = "ltfsdmtest"

// TempDir creates a scratch directory and returns it with its cleanup.
func TempDir(t *testing.T) (string, func()) {
	tdir, err := os.MkdirTemp("", testPrefix)
	if err != nil {
		t.Fatal(err)
	}
	return tdir, func() {
		if err := os.RemoveAll(tdir); err != nil {
			t.Fatal(err)
		}
	}
}

// TempFile creates a file of the given size inside dir and returns its
// path. The content is a repeating byte pattern.
func TempFile(t *testing.T, dir string, size int64) string {
	fp, err := os.CreateTemp(dir, testPrefix)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()

	Fill(t, fp, size)
	return fp.Name()
}

// Fill writes size patterned bytes to fp.
func Fill(t *testing.T, fp *os.File, size int64) {
	bs := int64(1024 * 1024)
	buf := make([]byte, bs)
	for i := range buf {
		buf[i] = byte(i)
	}

	for size > 0 {
		if size < bs {
			bs = size
		}
		if _, err := fp.Write(buf[:bs]); err != nil {
			t.Fatal(err)
		}
		size -= bs
	}
}

// Pattern returns the n leading bytes of the fill pattern.
func Pattern(n int64) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i % (1024 * 1024))
	}
	return buf
}

// WriteFile creates a file with the given content below dir.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
