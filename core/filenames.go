package core

import (
	"fmt"
	"strconv"
	"strings"
)

// This file centralizes the on-disk naming conventions shared by the engine
// and the checkpoint subsystem.

// FileType classifies the files that make up a store directory.
type FileType int

const (
	FileTypeTable FileType = iota
	FileTypeBlob
	FileTypeManifest
	FileTypeCurrent
	FileTypeOptions
	FileTypeWAL
)

func (t FileType) String() string {
	switch t {
	case FileTypeTable:
		return "table"
	case FileTypeBlob:
		return "blob"
	case FileTypeManifest:
		return "manifest"
	case FileTypeCurrent:
		return "current"
	case FileTypeOptions:
		return "options"
	case FileTypeWAL:
		return "wal"
	default:
		return "unknown"
	}
}

// --- File Names, Prefixes & Suffixes ---
const (
	// CurrentFileName is the name of the file that points to the active MANIFEST file.
	CurrentFileName = "CURRENT"
	// ManifestFilePrefix is the prefix for manifest files, e.g., MANIFEST_000001.bin
	ManifestFilePrefix = "MANIFEST"
	// OptionsFilePrefix is the prefix for persisted options files, e.g., OPTIONS_000001.yaml
	OptionsFilePrefix = "OPTIONS"

	// TableFileSuffix is the suffix for SSTable files.
	TableFileSuffix = ".sst"
	// BlobFileSuffix is the suffix for large-value blob files.
	BlobFileSuffix = ".blob"
	// WALFileSuffix is the suffix for WAL segment files.
	WALFileSuffix = ".wal"

	manifestFileSuffix = ".bin"
	optionsFileSuffix  = ".yaml"
)

// FormatTableFileName creates a table file name from its number.
func FormatTableFileName(number uint64) string {
	return fmt.Sprintf("%06d%s", number, TableFileSuffix)
}

// FormatBlobFileName creates a blob file name from its number.
func FormatBlobFileName(number uint64) string {
	return fmt.Sprintf("%06d%s", number, BlobFileSuffix)
}

// FormatSegmentFileName creates a WAL segment file name from its log number.
func FormatSegmentFileName(number uint64) string {
	return fmt.Sprintf("%08d%s", number, WALFileSuffix)
}

// FormatManifestFileName creates a manifest file name from its number.
func FormatManifestFileName(number uint64) string {
	return fmt.Sprintf("%s_%06d%s", ManifestFilePrefix, number, manifestFileSuffix)
}

// FormatOptionsFileName creates an options file name from its number.
func FormatOptionsFileName(number uint64) string {
	return fmt.Sprintf("%s_%06d%s", OptionsFilePrefix, number, optionsFileSuffix)
}

// ParseFileName classifies a base file name and extracts its file number.
// The CURRENT marker has no number and reports zero. ok is false for any
// name that does not follow the store's naming conventions.
func ParseFileName(name string) (number uint64, fileType FileType, ok bool) {
	switch {
	case name == CurrentFileName:
		return 0, FileTypeCurrent, true
	case strings.HasPrefix(name, ManifestFilePrefix+"_") && strings.HasSuffix(name, manifestFileSuffix):
		stem := strings.TrimSuffix(strings.TrimPrefix(name, ManifestFilePrefix+"_"), manifestFileSuffix)
		return parseNumber(stem, FileTypeManifest)
	case strings.HasPrefix(name, OptionsFilePrefix+"_") && strings.HasSuffix(name, optionsFileSuffix):
		stem := strings.TrimSuffix(strings.TrimPrefix(name, OptionsFilePrefix+"_"), optionsFileSuffix)
		return parseNumber(stem, FileTypeOptions)
	case strings.HasSuffix(name, TableFileSuffix):
		return parseNumber(strings.TrimSuffix(name, TableFileSuffix), FileTypeTable)
	case strings.HasSuffix(name, BlobFileSuffix):
		return parseNumber(strings.TrimSuffix(name, BlobFileSuffix), FileTypeBlob)
	case strings.HasSuffix(name, WALFileSuffix):
		return parseNumber(strings.TrimSuffix(name, WALFileSuffix), FileTypeWAL)
	default:
		return 0, 0, false
	}
}

func parseNumber(stem string, fileType FileType) (uint64, FileType, bool) {
	number, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return number, fileType, true
}
