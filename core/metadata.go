package core

// WalFileState reports whether a WAL segment is still live or has been
// moved to the archive by the engine.
type WalFileState int

const (
	WalFileAlive WalFileState = iota
	WalFileArchived
)

func (s WalFileState) String() string {
	if s == WalFileArchived {
		return "archived"
	}
	return "alive"
}

// WalFileDescriptor describes one WAL segment as reported by the engine.
type WalFileDescriptor struct {
	LogNumber uint64
	// PathName is the segment's base name within the WAL directory.
	PathName  string
	SizeBytes uint64
	State     WalFileState
}

// DBOptions is the subset of the engine's options the checkpoint subsystem
// needs to resolve directories and flush behavior.
type DBOptions struct {
	// WalDir is the directory WAL segments are written to. Empty means the
	// data directory itself.
	WalDir string
	// DBLogDir is the directory info logs are written to. Empty means the
	// data directory itself.
	DBLogDir string
	// AllowTwoPhaseCommit indicates the engine runs with 2PC enabled, in
	// which case a checkpoint always flushes before capturing live files.
	AllowTwoPhaseCommit bool
}

// GetWalDir returns the directory WAL segments live in for a store rooted at
// dataDir.
func (o DBOptions) GetWalDir(dataDir string) string {
	if o.WalDir != "" {
		return o.WalDir
	}
	return dataDir
}

// SSTableFileMetadata describes one live table file of a column family.
type SSTableFileMetadata struct {
	// FileName is the table file's base name within the data directory.
	FileName             string
	FileNumber           uint64
	SizeBytes            uint64
	SmallestSeqNum       uint64
	LargestSeqNum        uint64
	SmallestKey          []byte
	LargestKey           []byte
	OldestBlobFileNumber uint64
}

// ColumnFamilyLevelMetadata groups a column family's table files by level.
type ColumnFamilyLevelMetadata struct {
	Level int
	Files []SSTableFileMetadata
}

// ColumnFamilyMetaData is the engine's table-file inventory for one column
// family, captured at a single instant.
type ColumnFamilyMetaData struct {
	Name           string
	ComparatorName string
	Levels         []ColumnFamilyLevelMetadata
}

// ExportedFileMetadata describes one table file placed in an export
// directory, carrying enough information to import it into another store.
type ExportedFileMetadata struct {
	FileName             string
	DBPath               string
	FileNumber           uint64
	SizeBytes            uint64
	SmallestSeqNum       uint64
	LargestSeqNum        uint64
	SmallestKey          []byte
	LargestKey           []byte
	Level                int
	OldestBlobFileNumber uint64
}

// ExportedMetadata is the result of exporting a column family: one record
// per exported table file plus the comparator the family was built with.
type ExportedMetadata struct {
	ComparatorName string
	Files          []ExportedFileMetadata
}
