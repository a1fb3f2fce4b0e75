package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// MemtableOptions holds memtable-specific options.
type MemtableOptions struct {
	SizeThresholdBytes int64  `yaml:"size_threshold_bytes"`
	FlushInterval      string `yaml:"flush_interval"`
}

// SSTableOptions holds sstable-specific options.
type SSTableOptions struct {
	BlockSizeBytes    int64   `yaml:"block_size_bytes"`
	Compression       string  `yaml:"compression"`
	BloomFilterFPRate float64 `yaml:"bloom_filter_fp_rate"`
}

// CompactionOptions holds compaction-specific options.
type CompactionOptions struct {
	L0TriggerFileCount     int   `yaml:"l0_trigger_file_count"`
	TargetSSTableSizeBytes int64 `yaml:"target_sstable_size_bytes"`
	LevelsSizeMultiplier   int   `yaml:"levels_size_multiplier"`
	MaxLevels              int   `yaml:"max_levels"`
}

// WALOptions holds Write-Ahead Log specific options.
type WALOptions struct {
	SyncMode            string `yaml:"sync_mode"`
	MaxSegmentSizeBytes int64  `yaml:"max_segment_size_bytes"`
}

// ColumnFamilyOptions holds the persisted options of one column family.
type ColumnFamilyOptions struct {
	Name                 string `yaml:"name"`
	Comparator           string `yaml:"comparator"`
	WriteBufferSizeBytes int64  `yaml:"write_buffer_size_bytes"`
}

// StoredOptions models the options file the engine persists beside its data
// files. A relocated checkpoint rewrites wal_dir and db_log_dir; every other
// field passes through untouched.
type StoredOptions struct {
	DataDir             string                `yaml:"data_dir"`
	WalDir              string                `yaml:"wal_dir"`
	DBLogDir            string                `yaml:"db_log_dir"`
	AllowTwoPhaseCommit bool                  `yaml:"allow_2pc"`
	Memtable            MemtableOptions       `yaml:"memtable"`
	SSTable             SSTableOptions        `yaml:"sstable"`
	Compaction          CompactionOptions     `yaml:"compaction"`
	WAL                 WALOptions            `yaml:"wal"`
	ColumnFamilies      []ColumnFamilyOptions `yaml:"column_families"`
}

// LoadOptions reads a persisted options file from an io.Reader.
func LoadOptions(r io.Reader) (*StoredOptions, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read options data: %w", err)
	}
	var opts StoredOptions
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to parse options data: %w", err)
	}
	return &opts, nil
}

// Write serializes the options in the engine's persisted format.
func (o *StoredOptions) Write(w io.Writer) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to serialize options: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write options data: %w", err)
	}
	return nil
}
