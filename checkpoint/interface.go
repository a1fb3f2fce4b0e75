// Package checkpoint produces consistent, point-in-time, on-disk snapshots
// of a live storage engine, and column-family-scoped exports usable to
// bootstrap new store instances. The engine keeps accepting writes and
// running background flush/compaction throughout; a finished checkpoint
// becomes visible at its final path only through a single directory rename.
package checkpoint

import (
	"log/slog"

	"github.com/INLOpen/nexuscheckpoint/core"
	"github.com/INLOpen/nexuscheckpoint/hooks"
	"go.opentelemetry.io/otel/trace"
)

// EngineProvider defines the set of methods the checkpoint subsystem needs
// to access the state of the storage engine. This interface acts as a
// bridge, decoupling the checkpoint logic from the engine implementation.
type EngineProvider interface {
	// State & Config
	CheckStarted() error
	GetDataDir() string
	GetDBOptions() core.DBOptions
	GetLogger() *slog.Logger
	GetTracer() trace.Tracer
	GetHookManager() hooks.HookManager

	// Live file enumeration. GetLiveFiles returns the base names of every
	// file the current version depends on (table, blob, manifest, CURRENT
	// and options files) plus the manifest's size at that instant,
	// optionally forcing a memtable flush first.
	GetLiveFiles(flushMemtable bool) (files []string, manifestSizeBytes uint64, err error)
	GetLatestSequenceNumber() uint64
	// GetMinLogNumberToKeep reports the smallest WAL log number still
	// required for recovery.
	GetMinLogNumberToKeep() (uint64, error)
	// GetSortedWalFiles enumerates WAL segments in ascending log-number
	// order with per-file size and alive/archived state.
	GetSortedWalFiles() ([]core.WalFileDescriptor, error)

	// Flushing
	FlushWAL(sync bool) error
	// FlushColumnFamily synchronously flushes the named column family's
	// memtable to its table files.
	FlushColumnFamily(name string) error

	// File deletion suppression. DisableFileDeletions may return
	// core.ErrNotSupported, which the checkpoint tolerates; EnableFileDeletions
	// is called exactly once per successful disable.
	DisableFileDeletions() error
	EnableFileDeletions() error

	// GetColumnFamilyMetaData captures the named column family's current
	// table-file inventory.
	GetColumnFamilyMetaData(name string) (core.ColumnFamilyMetaData, error)
}
