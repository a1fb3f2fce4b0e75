package internal

import "os"

// PrivateCheckpointHelper defines the filesystem operations the checkpoint
// subsystem performs, allowing them to be mocked in tests.
type PrivateCheckpointHelper interface {
	Stat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.DirEntry, error)
	CreateDir(path string, perm os.FileMode) error
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
	Link(oldname, newname string) error
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	// CopyFile copies src to dst. A positive sizeLimitBytes stops the copy
	// after that many bytes even if the source file keeps growing.
	CopyFile(src, dst string, sizeLimitBytes uint64) error
	// SyncDir opens the directory and fsyncs it, making a preceding rename
	// of that directory durable.
	SyncDir(path string) error
}
