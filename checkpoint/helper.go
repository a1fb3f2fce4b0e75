package checkpoint

import (
	"fmt"
	"io"
	"os"

	"github.com/INLOpen/nexuscheckpoint/internal"
)

type helperCheckpoint struct{}

var _ internal.PrivateCheckpointHelper = (*helperCheckpoint)(nil)

func newHelperCheckpoint() *helperCheckpoint {
	return &helperCheckpoint{}
}

func (h *helperCheckpoint) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (h *helperCheckpoint) ReadDir(name string) ([]os.DirEntry, error) {
	return os.ReadDir(name)
}

func (h *helperCheckpoint) CreateDir(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (h *helperCheckpoint) Remove(name string) error {
	return os.Remove(name)
}

func (h *helperCheckpoint) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (h *helperCheckpoint) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (h *helperCheckpoint) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

func (h *helperCheckpoint) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (h *helperCheckpoint) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// CopyFile copies a file from src to dst. A positive sizeLimitBytes caps the
// number of bytes read, which keeps a source file that is still being
// appended to (the active WAL segment, the manifest) from leaking later
// writes into the copy.
func (h *helperCheckpoint) CopyFile(src, dst string, sizeLimitBytes uint64) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}
	defer out.Close()

	var written int64
	if sizeLimitBytes > 0 {
		written, err = io.CopyN(out, in, int64(sizeLimitBytes))
		if err == io.EOF {
			// Source is smaller than the cap.
			err = nil
		}
	} else {
		written, err = io.Copy(out, in)
	}
	if err != nil {
		return fmt.Errorf("failed to copy data from %s to %s: %w", src, dst, err)
	}
	copiedBytesTotal.Add(float64(written))
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination file %s: %w", dst, err)
	}
	return nil
}

// SyncDir fsyncs a directory so that a rename creating it is durable.
func (h *helperCheckpoint) SyncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open directory %s for sync: %w", path, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory %s: %w", path, err)
	}
	return nil
}
