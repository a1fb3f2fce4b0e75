package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/INLOpen/nexuscheckpoint/config"
	"github.com/INLOpen/nexuscheckpoint/core"
	"github.com/INLOpen/nexuscheckpoint/hooks"
	"github.com/INLOpen/nexuscheckpoint/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// --- Mocks ---

// fakeEngineProvider is a configurable EngineProvider backed by real files in
// a temp directory. Every GetLiveFiles call bumps the sequence number to
// simulate writes arriving while the checkpoint runs.
type fakeEngineProvider struct {
	dataDir   string
	dbOptions core.DBOptions
	logger    *slog.Logger
	tracer    trace.Tracer
	hookMgr   hooks.HookManager

	started           bool
	liveFiles         []string
	manifestSizeBytes uint64
	sequence          uint64
	minLogNumber      uint64
	walFiles          []core.WalFileDescriptor
	cfMeta            map[string]core.ColumnFamilyMetaData

	liveFilesErr error
	minLogErr    error
	disableErr   error
	cfMetaErr    error

	liveFilesCalls []bool
	flushWALCalls  int
	flushCFCalls   []string
	disableCalls   int
	enableCalls    int
}

func newFakeEngineProvider(t *testing.T, dataDir string) *fakeEngineProvider {
	t.Helper()
	return &fakeEngineProvider{
		dataDir: dataDir,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:  noop.NewTracerProvider().Tracer("test"),
		hookMgr: hooks.NewHookManager(nil),
		started: true,
	}
}

func (p *fakeEngineProvider) CheckStarted() error {
	if !p.started {
		return errors.New("engine is not started")
	}
	return nil
}

func (p *fakeEngineProvider) GetDataDir() string                { return p.dataDir }
func (p *fakeEngineProvider) GetDBOptions() core.DBOptions      { return p.dbOptions }
func (p *fakeEngineProvider) GetLogger() *slog.Logger           { return p.logger }
func (p *fakeEngineProvider) GetTracer() trace.Tracer           { return p.tracer }
func (p *fakeEngineProvider) GetHookManager() hooks.HookManager { return p.hookMgr }

func (p *fakeEngineProvider) GetLiveFiles(flushMemtable bool) ([]string, uint64, error) {
	p.liveFilesCalls = append(p.liveFilesCalls, flushMemtable)
	if p.liveFilesErr != nil {
		return nil, 0, p.liveFilesErr
	}
	p.sequence++
	return p.liveFiles, p.manifestSizeBytes, nil
}

func (p *fakeEngineProvider) GetLatestSequenceNumber() uint64 { return p.sequence }

func (p *fakeEngineProvider) GetMinLogNumberToKeep() (uint64, error) {
	if p.minLogErr != nil {
		return 0, p.minLogErr
	}
	return p.minLogNumber, nil
}

func (p *fakeEngineProvider) GetSortedWalFiles() ([]core.WalFileDescriptor, error) {
	return p.walFiles, nil
}

func (p *fakeEngineProvider) FlushWAL(sync bool) error {
	p.flushWALCalls++
	return nil
}

func (p *fakeEngineProvider) FlushColumnFamily(name string) error {
	p.flushCFCalls = append(p.flushCFCalls, name)
	return nil
}

func (p *fakeEngineProvider) DisableFileDeletions() error {
	p.disableCalls++
	return p.disableErr
}

func (p *fakeEngineProvider) EnableFileDeletions() error {
	p.enableCalls++
	return nil
}

func (p *fakeEngineProvider) GetColumnFamilyMetaData(name string) (core.ColumnFamilyMetaData, error) {
	if p.cfMetaErr != nil {
		return core.ColumnFamilyMetaData{}, p.cfMetaErr
	}
	return p.cfMeta[name], nil
}

// recordingHelper wraps the real filesystem helper, recording link and copy
// activity and optionally failing hard links after a number of successes.
type recordingHelper struct {
	internal.PrivateCheckpointHelper
	mu         sync.Mutex
	linked     []string
	copied     []copyCall
	linkErr    error
	allowLinks int // links served before linkErr kicks in
	linkCalls  int
	syncDirErr error
}

type copyCall struct {
	dst   string
	limit uint64
}

func newRecordingHelper() *recordingHelper {
	return &recordingHelper{PrivateCheckpointHelper: newHelperCheckpoint()}
}

func (h *recordingHelper) Link(oldname, newname string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.linkCalls++
	if h.linkErr != nil && h.linkCalls > h.allowLinks {
		return h.linkErr
	}
	if err := h.PrivateCheckpointHelper.Link(oldname, newname); err != nil {
		return err
	}
	h.linked = append(h.linked, filepath.Base(newname))
	return nil
}

func (h *recordingHelper) CopyFile(src, dst string, sizeLimitBytes uint64) error {
	h.mu.Lock()
	h.copied = append(h.copied, copyCall{dst: filepath.Base(dst), limit: sizeLimitBytes})
	h.mu.Unlock()
	return h.PrivateCheckpointHelper.CopyFile(src, dst, sizeLimitBytes)
}

func (h *recordingHelper) SyncDir(path string) error {
	if h.syncDirErr != nil {
		return h.syncDirErr
	}
	return h.PrivateCheckpointHelper.SyncDir(path)
}

// cancelListener is a pre-hook listener that vetoes the operation.
type cancelListener struct {
	err error
}

func (l *cancelListener) OnEvent(ctx context.Context, event hooks.HookEvent) error { return l.err }
func (l *cancelListener) Priority() int                                            { return 100 }
func (l *cancelListener) IsAsync() bool                                            { return false }

// --- Fixtures ---

func writeDataFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

// populateDataDir lays down a small but complete store: two table files, a
// blob file, a manifest with trailing bytes past the captured size, a stale
// CURRENT marker, an options file and two WAL segments. It configures the
// provider to match.
func populateDataDir(t *testing.T, p *fakeEngineProvider) {
	t.Helper()
	dir := p.dataDir

	writeDataFile(t, dir, "000001.sst", []byte("table-one"))
	writeDataFile(t, dir, "000002.sst", []byte("table-two"))
	writeDataFile(t, dir, "000003.blob", []byte("blob-three"))

	manifest := buildManifest(t, nil)
	manifestSize := uint64(len(manifest))
	// Bytes appended after the capture must never reach the checkpoint.
	manifest = append(manifest, []byte("late-append")...)
	writeDataFile(t, dir, "MANIFEST_000001.bin", manifest)

	// Stale on purpose; the checkpoint synthesizes its own CURRENT.
	writeDataFile(t, dir, "CURRENT", []byte("MANIFEST_000000.bin\n"))

	writeDataFile(t, dir, "OPTIONS_000001.yaml", []byte("data_dir: "+dir+"\nwal_dir: "+dir+"\n"))

	writeDataFile(t, dir, "00000001.wal", []byte("wal-one"))
	writeDataFile(t, dir, "00000002.wal", []byte("wal-two-with-tail"))

	p.liveFiles = []string{
		"000001.sst",
		"000002.sst",
		"000003.blob",
		"MANIFEST_000001.bin",
		"CURRENT",
		"OPTIONS_000001.yaml",
	}
	p.manifestSizeBytes = manifestSize
	p.sequence = 40
	p.walFiles = []core.WalFileDescriptor{
		{LogNumber: 1, PathName: "00000001.wal", SizeBytes: 7, State: core.WalFileAlive},
		{LogNumber: 2, PathName: "00000002.wal", SizeBytes: 7, State: core.WalFileAlive},
	}
}

func buildManifest(t *testing.T, entries []core.FileChecksumEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, core.WriteManifestHeader(&buf))
	require.NoError(t, core.WriteManifestRecord(&buf, core.ManifestRecord{Kind: core.ManifestRecordFileAdd, Payload: []byte("ignored")}))
	for _, entry := range entries {
		require.NoError(t, core.WriteChecksumRecord(&buf, entry))
	}
	return buf.Bytes()
}

// --- Tests ---

func TestCreateCheckpoint_Basic(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	helper := newRecordingHelper()
	builder := NewBuilderWithTesting(p, helper)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	seq, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.NoError(t, err)

	// The sequence is captured before live-file enumeration bumps it.
	assert.Equal(t, uint64(40), seq)

	// Staging directory is gone, final directory exists.
	_, statErr := os.Stat(targetDir + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
	info, err := os.Stat(targetDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// CURRENT was synthesized from the manifest name, not copied.
	current, err := os.ReadFile(filepath.Join(targetDir, "CURRENT"))
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST_000001.bin\n", string(current))

	// Manifest is capped at the size captured during enumeration.
	manifestInfo, err := os.Stat(filepath.Join(targetDir, "MANIFEST_000001.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(p.manifestSizeBytes), manifestInfo.Size())

	// Table and blob files were hard linked; same filesystem in the test.
	assert.ElementsMatch(t, []string{"000001.sst", "000002.sst", "000003.blob", "00000001.wal"}, helper.linked)

	// The newest alive WAL was copied with its captured size as the cap.
	var lastWal *copyCall
	for i := range helper.copied {
		if helper.copied[i].dst == "00000002.wal" {
			lastWal = &helper.copied[i]
		}
	}
	require.NotNil(t, lastWal)
	assert.Equal(t, uint64(7), lastWal.limit)
	walData, err := os.ReadFile(filepath.Join(targetDir, "00000002.wal"))
	require.NoError(t, err)
	assert.Equal(t, "wal-two", string(walData))

	// Options were rewritten to keep the checkpoint from touching the
	// source database's WAL directory. Empty means "beside the data files".
	rewritten, err := os.ReadFile(filepath.Join(targetDir, "OPTIONS_000001.yaml"))
	require.NoError(t, err)
	opts, err := config.LoadOptions(bytes.NewReader(rewritten))
	require.NoError(t, err)
	assert.Equal(t, "", opts.WalDir)
	assert.Equal(t, "", opts.DBLogDir)

	// Two enumerations, one WAL flush, deletions disabled and re-enabled.
	assert.Equal(t, []bool{false, false}, p.liveFilesCalls)
	assert.Equal(t, 1, p.flushWALCalls)
	assert.Equal(t, 1, p.disableCalls)
	assert.Equal(t, 1, p.enableCalls)
}

func TestCreateCheckpoint_EmptyDatabase(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)

	// A fresh store has a manifest, CURRENT and options but no data files
	// and no sequence history.
	manifest := buildManifest(t, nil)
	writeDataFile(t, dataDir, "MANIFEST_000001.bin", manifest)
	writeDataFile(t, dataDir, "CURRENT", []byte("MANIFEST_000001.bin\n"))
	writeDataFile(t, dataDir, "OPTIONS_000001.yaml", []byte("data_dir: "+dataDir+"\n"))
	p.liveFiles = []string{"MANIFEST_000001.bin", "CURRENT", "OPTIONS_000001.yaml"}
	p.manifestSizeBytes = uint64(len(manifest))
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	seq, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	current, err := os.ReadFile(filepath.Join(targetDir, "CURRENT"))
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST_000001.bin\n", string(current))
	_, statErr := os.Stat(filepath.Join(targetDir, "MANIFEST_000001.bin"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(targetDir, "OPTIONS_000001.yaml"))
	assert.NoError(t, statErr)
}

func TestCreateCheckpoint_TargetExists(t *testing.T) {
	p := newFakeEngineProvider(t, t.TempDir())
	builder := NewBuilder(p)

	targetDir := t.TempDir() // exists already
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.Error(t, err)
	assert.True(t, core.IsInvalidTarget(err))
	// The engine was never consulted.
	assert.Empty(t, p.liveFilesCalls)
	assert.Zero(t, p.disableCalls)
}

func TestCreateCheckpoint_InvalidTargetName(t *testing.T) {
	p := newFakeEngineProvider(t, t.TempDir())
	builder := NewBuilder(p)

	for _, targetDir := range []string{"", "///"} {
		_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
		require.Error(t, err, "target %q", targetDir)
		assert.True(t, core.IsInvalidTarget(err), "target %q", targetDir)
	}
}

func TestCreateCheckpoint_TrailingSlashes(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir+"//", 0, "", "")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(targetDir, "CURRENT"))
	assert.NoError(t, statErr)
}

func TestCreateCheckpoint_NotStarted(t *testing.T) {
	p := newFakeEngineProvider(t, t.TempDir())
	p.started = false
	builder := NewBuilder(p)

	_, err := builder.CreateCheckpoint(context.Background(), filepath.Join(t.TempDir(), "cp"), 0, "", "")
	require.Error(t, err)
}

func TestCreateCheckpoint_FlushDecision(t *testing.T) {
	testCases := []struct {
		name      string
		threshold uint64
		allow2PC  bool
		wantFlush bool
	}{
		{name: "ZeroThresholdSkipsFlush", threshold: 0, wantFlush: false},
		{name: "ThresholdAboveWalBytesSkipsFlush", threshold: 1 << 20, wantFlush: false},
		{name: "ThresholdAtWalBytesFlushes", threshold: 14, wantFlush: true},
		{name: "ThresholdBelowWalBytesFlushes", threshold: 1, wantFlush: true},
		{name: "TwoPhaseCommitAlwaysFlushes", threshold: 0, allow2PC: true, wantFlush: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dataDir := t.TempDir()
			p := newFakeEngineProvider(t, dataDir)
			populateDataDir(t, p)
			p.dbOptions.AllowTwoPhaseCommit = tc.allow2PC
			builder := NewBuilder(p)

			targetDir := filepath.Join(t.TempDir(), "checkpoint")
			_, err := builder.CreateCheckpoint(context.Background(), targetDir, tc.threshold, "", "")
			require.NoError(t, err)

			require.Len(t, p.liveFilesCalls, 2)
			assert.Equal(t, tc.wantFlush, p.liveFilesCalls[0])
			assert.Equal(t, tc.wantFlush, p.liveFilesCalls[1])
		})
	}
}

func TestCreateCheckpoint_FlushedSkipsObsoleteWals(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	writeDataFile(t, dataDir, "00000003.wal", []byte("wal-three"))
	p.walFiles = []core.WalFileDescriptor{
		{LogNumber: 1, PathName: "00000001.wal", SizeBytes: 7, State: core.WalFileAlive},
		{LogNumber: 2, PathName: "00000002.wal", SizeBytes: 7, State: core.WalFileAlive},
		{LogNumber: 3, PathName: "00000003.wal", SizeBytes: 9, State: core.WalFileAlive},
	}
	p.minLogNumber = 2
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 1, "", "")
	require.NoError(t, err)

	// Log 1 predates the flushed state and is skipped; 2 and 3 survive.
	_, statErr := os.Stat(filepath.Join(targetDir, "00000001.wal"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(targetDir, "00000002.wal"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(targetDir, "00000003.wal"))
	assert.NoError(t, statErr)
}

func TestCreateCheckpoint_ArchivedWalsSkipped(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	writeDataFile(t, dataDir, "00000000.wal", []byte("wal-zero"))
	p.walFiles = append([]core.WalFileDescriptor{
		{LogNumber: 0, PathName: "00000000.wal", SizeBytes: 8, State: core.WalFileArchived},
	}, p.walFiles...)
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(targetDir, "00000000.wal"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateCheckpoint_HardLinkFallback(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	helper := newRecordingHelper()
	helper.linkErr = syscall.EXDEV
	builder := NewBuilderWithTesting(p, helper)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.NoError(t, err)

	// Everything fell back to copies; the checkpoint is complete anyway.
	assert.Empty(t, helper.linked)
	for _, name := range []string{"000001.sst", "000002.sst", "000003.blob", "00000001.wal", "00000002.wal"} {
		_, statErr := os.Stat(filepath.Join(targetDir, name))
		assert.NoError(t, statErr, "file %s", name)
	}
	// Only one failed link attempt; the state sticks for the rest.
	assert.Equal(t, 1, helper.linkCalls)
}

func TestCreateCheckpoint_UnparseableLiveFile(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	p.liveFiles = append(p.liveFiles, "garbage.txt")
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.Error(t, err)
	assert.True(t, core.IsCorruption(err))

	// Failure cleans the staging directory and re-enables deletions.
	_, statErr := os.Stat(targetDir + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(targetDir)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 1, p.enableCalls)
}

func TestCreateCheckpoint_DisableFileDeletionsUnsupported(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	p.disableErr = core.ErrNotSupported
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.NoError(t, err)
	// Enable is never called for a disable that did not take effect.
	assert.Equal(t, 1, p.disableCalls)
	assert.Zero(t, p.enableCalls)
}

func TestCreateCheckpoint_PreHookCancels(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	p.hookMgr.Register(hooks.EventPreCreateCheckpoint, &cancelListener{err: errors.New("not now")})
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled by pre-hook")
	assert.Empty(t, p.liveFilesCalls)
	_, statErr := os.Stat(targetDir + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateCheckpoint_WalDirOverride(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	walOverride := filepath.Join(t.TempDir(), "wal-override")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, walOverride, "")
	require.NoError(t, err)

	// WAL files land in the external directory, not the checkpoint.
	_, statErr := os.Stat(filepath.Join(walOverride, "00000002.wal"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(targetDir, "00000002.wal"))
	assert.True(t, os.IsNotExist(statErr))

	rewritten, err := os.ReadFile(filepath.Join(targetDir, "OPTIONS_000001.yaml"))
	require.NoError(t, err)
	opts, err := config.LoadOptions(bytes.NewReader(rewritten))
	require.NoError(t, err)
	assert.Equal(t, walOverride, opts.WalDir)
}

func TestCreateCheckpoint_WalDirNestedUnderTarget(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	nestedWal := filepath.Join(targetDir, "wal")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, nestedWal, "")
	require.NoError(t, err)

	// The nested WAL directory was staged inside the temporary directory
	// and traveled with the final rename.
	_, statErr := os.Stat(filepath.Join(nestedWal, "00000002.wal"))
	assert.NoError(t, statErr)
}

func TestCreateCheckpoint_StaleStagingDirCleaned(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	// Leftovers from an earlier crashed attempt.
	require.NoError(t, os.MkdirAll(targetDir+".tmp", 0755))
	writeDataFile(t, targetDir+".tmp", "stale.sst", []byte("old"))

	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(targetDir, "stale.sst"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateCheckpoint_MinLogNumberError(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	p.minLogErr = errors.New("manifest unreadable")
	builder := NewBuilder(p)

	targetDir := filepath.Join(t.TempDir(), "checkpoint")
	_, err := builder.CreateCheckpoint(context.Background(), targetDir, 0, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot get the min log number to keep")
	assert.Equal(t, 1, p.enableCalls)
}

// customTransfer records FileTransfer calls for CreateCustomCheckpoint tests.
type customTransfer struct {
	linkErr error
	links   []string
	copies  []customCopy
	creates map[string]string
}

type customCopy struct {
	fname            string
	limit            uint64
	checksumFuncName string
	checksumValue    string
}

func (c *customTransfer) Link(srcDir, fname string, fileType core.FileType) error {
	if c.linkErr != nil {
		return c.linkErr
	}
	c.links = append(c.links, fname)
	return nil
}

func (c *customTransfer) Copy(srcDir, fname string, sizeLimitBytes uint64, fileType core.FileType, checksumFuncName, checksumValue string) error {
	c.copies = append(c.copies, customCopy{fname: fname, limit: sizeLimitBytes, checksumFuncName: checksumFuncName, checksumValue: checksumValue})
	return nil
}

func (c *customTransfer) Create(fname, contents string, fileType core.FileType) error {
	if c.creates == nil {
		c.creates = make(map[string]string)
	}
	c.creates[fname] = contents
	return nil
}

func TestCreateCustomCheckpoint_WithChecksums(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)

	// Re-write the manifest with a checksum record for table file 1.
	manifest := buildManifest(t, []core.FileChecksumEntry{
		{FileNumber: 1, ChecksumFuncName: "crc32c", ChecksumValue: "abcd1234"},
	})
	writeDataFile(t, dataDir, "MANIFEST_000001.bin", manifest)
	p.manifestSizeBytes = uint64(len(manifest))

	builder := NewBuilder(p)
	transfer := &customTransfer{linkErr: core.ErrNotSupported}
	seq, err := builder.CreateCustomCheckpoint(transfer, 0, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), seq)

	byName := make(map[string]customCopy)
	for _, cp := range transfer.copies {
		byName[cp.fname] = cp
	}

	// The manifest-recorded checksum reaches the copy of file 1; files
	// without an entry carry the unknown sentinels.
	require.Contains(t, byName, "000001.sst")
	assert.Equal(t, "crc32c", byName["000001.sst"].checksumFuncName)
	assert.Equal(t, "abcd1234", byName["000001.sst"].checksumValue)
	require.Contains(t, byName, "000002.sst")
	assert.Equal(t, core.UnknownChecksumFuncName, byName["000002.sst"].checksumFuncName)
	assert.Equal(t, core.UnknownChecksumValue, byName["000002.sst"].checksumValue)

	assert.Equal(t, "MANIFEST_000001.bin\n", transfer.creates["CURRENT"])
}

func TestCreateCustomCheckpoint_LinksWhenSupported(t *testing.T) {
	dataDir := t.TempDir()
	p := newFakeEngineProvider(t, dataDir)
	populateDataDir(t, p)
	builder := NewBuilder(p)

	transfer := &customTransfer{}
	_, err := builder.CreateCustomCheckpoint(transfer, 0, false)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"000001.sst", "000002.sst", "000003.blob", "00000001.wal"}, transfer.links)
	// The manifest, options file and the newest WAL are always copies.
	names := make([]string, 0, len(transfer.copies))
	for _, cp := range transfer.copies {
		names = append(names, cp.fname)
	}
	assert.ElementsMatch(t, []string{"MANIFEST_000001.bin", "OPTIONS_000001.yaml", "00000002.wal"}, names)
}
