package checkpoint

import (
	"bytes"
	"fmt"

	"github.com/INLOpen/nexuscheckpoint/core"
	"github.com/INLOpen/nexuscheckpoint/internal"
)

// FileChecksumIndex maps table and blob file numbers to the checksum the
// manifest recorded for them. It is consulted only when a file has to be
// copied rather than hard-linked.
type FileChecksumIndex struct {
	entries map[uint64]core.FileChecksumEntry
}

// NewFileChecksumIndexFromManifest parses at most sizeLimitBytes of the
// manifest at path into an index. The cap matches the manifest size captured
// during live-file enumeration so the index agrees with the manifest contents
// the checkpoint will contain, not with whatever the engine appended since.
func NewFileChecksumIndexFromManifest(helper internal.PrivateCheckpointHelper, path string, sizeLimitBytes uint64) (*FileChecksumIndex, error) {
	data, err := helper.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if sizeLimitBytes > 0 && uint64(len(data)) > sizeLimitBytes {
		data = data[:sizeLimitBytes]
	}
	entries, err := core.ReadChecksumRecords(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse checksums from manifest %s: %w", path, err)
	}

	idx := &FileChecksumIndex{entries: make(map[uint64]core.FileChecksumEntry, len(entries))}
	for _, entry := range entries {
		idx.entries[entry.FileNumber] = entry
	}
	return idx, nil
}

// Lookup returns the recorded checksum for a file number. A miss is not an
// error: legacy files that predate checksum tracking get the unknown
// sentinels. A nil index behaves as all-misses.
func (idx *FileChecksumIndex) Lookup(fileNumber uint64) (checksumFuncName, checksumValue string) {
	if idx != nil {
		if entry, ok := idx.entries[fileNumber]; ok {
			return entry.ChecksumFuncName, entry.ChecksumValue
		}
	}
	return core.UnknownChecksumFuncName, core.UnknownChecksumValue
}

// Len reports the number of indexed checksum entries.
func (idx *FileChecksumIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}
