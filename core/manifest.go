package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// The manifest is an append-only log of tagged records describing the
// engine's durable file state. The checkpoint subsystem only interprets
// checksum records; every other kind is skipped, so the engine can add new
// record kinds without breaking older readers.

// ManifestMagicNumber identifies a binary manifest file.
const ManifestMagicNumber uint32 = 0x424E414D // "MANB" for MANifest Binary

// ManifestFormatVersion is the current manifest record format version.
const ManifestFormatVersion uint8 = 1

// Manifest record kinds.
const (
	ManifestRecordFileAdd      uint8 = 1
	ManifestRecordFileDelete   uint8 = 2
	ManifestRecordFileChecksum uint8 = 3
)

// Sentinels used when no checksum is known for a file. Legacy table files
// may predate checksum tracking; lookups fall back to these values.
const (
	UnknownChecksumFuncName = "Unknown"
	UnknownChecksumValue    = "0"
)

// FileChecksumEntry associates a table or blob file number with the checksum
// recorded for it in the manifest.
type FileChecksumEntry struct {
	FileNumber       uint64
	ChecksumFuncName string
	ChecksumValue    string
}

// ManifestRecord is one tagged record in a manifest file.
type ManifestRecord struct {
	Kind    uint8
	Payload []byte
}

// WriteManifestHeader writes the magic number and format version that start
// every manifest file.
func WriteManifestHeader(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, ManifestMagicNumber); err != nil {
		return fmt.Errorf("failed to write manifest magic number: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, ManifestFormatVersion); err != nil {
		return fmt.Errorf("failed to write manifest format version: %w", err)
	}
	return nil
}

// WriteManifestRecord appends one tagged record.
func WriteManifestRecord(w io.Writer, rec ManifestRecord) error {
	if err := binary.Write(w, binary.LittleEndian, rec.Kind); err != nil {
		return fmt.Errorf("failed to write manifest record kind: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Payload))); err != nil {
		return fmt.Errorf("failed to write manifest record length: %w", err)
	}
	if _, err := w.Write(rec.Payload); err != nil {
		return fmt.Errorf("failed to write manifest record payload: %w", err)
	}
	return nil
}

// WriteChecksumRecord appends a file-checksum record.
func WriteChecksumRecord(w io.Writer, entry FileChecksumEntry) error {
	buf := make([]byte, 0, 8+2+len(entry.ChecksumFuncName)+2+len(entry.ChecksumValue))
	buf = binary.LittleEndian.AppendUint64(buf, entry.FileNumber)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(entry.ChecksumFuncName)))
	buf = append(buf, entry.ChecksumFuncName...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(entry.ChecksumValue)))
	buf = append(buf, entry.ChecksumValue...)
	return WriteManifestRecord(w, ManifestRecord{Kind: ManifestRecordFileChecksum, Payload: buf})
}

// ReadChecksumRecords scans a manifest stream and returns the checksum
// entries it contains, skipping records of any other kind. A truncated
// trailing record is not an error: reads capped at a captured manifest size
// legitimately end mid-record while the engine keeps appending.
func ReadChecksumRecords(r io.Reader) ([]FileChecksumEntry, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("failed to read manifest magic number: %w", err)
	}
	if magic != ManifestMagicNumber {
		return nil, &CorruptionError{Message: fmt.Sprintf("invalid manifest magic number: got %x, want %x", magic, ManifestMagicNumber)}
	}
	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("failed to read manifest format version: %w", err)
	}

	var entries []FileChecksumEntry
	for {
		var kind uint8
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("failed to read manifest record kind: %w", err)
		}
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			if isTruncated(err) {
				return entries, nil
			}
			return nil, fmt.Errorf("failed to read manifest record length: %w", err)
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			if isTruncated(err) {
				return entries, nil
			}
			return nil, fmt.Errorf("failed to read manifest record payload: %w", err)
		}
		if kind != ManifestRecordFileChecksum {
			continue
		}
		entry, err := decodeChecksumPayload(payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

func isTruncated(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func decodeChecksumPayload(payload []byte) (FileChecksumEntry, error) {
	corrupt := func() (FileChecksumEntry, error) {
		return FileChecksumEntry{}, &CorruptionError{Message: "malformed file-checksum record in manifest"}
	}
	if len(payload) < 8+2 {
		return corrupt()
	}
	entry := FileChecksumEntry{FileNumber: binary.LittleEndian.Uint64(payload)}
	rest := payload[8:]

	nameLen := int(binary.LittleEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < nameLen+2 {
		return corrupt()
	}
	entry.ChecksumFuncName = string(rest[:nameLen])
	rest = rest[nameLen:]

	valueLen := int(binary.LittleEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) != valueLen {
		return corrupt()
	}
	entry.ChecksumValue = string(rest)
	return entry, nil
}
