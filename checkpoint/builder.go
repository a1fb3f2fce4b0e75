package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/INLOpen/nexuscheckpoint/core"
	"github.com/INLOpen/nexuscheckpoint/hooks"
	"github.com/INLOpen/nexuscheckpoint/internal"
	"go.opentelemetry.io/otel/attribute"
)

// stagingDirSuffix is appended to the normalized target path to derive the
// staging directory a checkpoint is accumulated in before the final rename.
const stagingDirSuffix = ".tmp"

// Builder creates full-database checkpoints of a live storage engine.
type Builder struct {
	provider EngineProvider
	helper   internal.PrivateCheckpointHelper
}

// NewBuilder creates a checkpoint builder borrowing the given engine
// provider. The builder never owns the engine; it only uses it for the
// duration of each call.
func NewBuilder(provider EngineProvider) *Builder {
	return NewBuilderWithTesting(provider, nil)
}

// NewBuilderWithTesting allows substituting the filesystem helper.
func NewBuilderWithTesting(provider EngineProvider, helper internal.PrivateCheckpointHelper) *Builder {
	if helper == nil {
		helper = newHelperCheckpoint()
	}
	return &Builder{provider: provider, helper: helper}
}

// CreateCheckpoint builds an openable point-in-time copy of the database at
// targetDir, which must not exist yet. flushThresholdBytes controls whether
// a memtable flush precedes the capture: zero skips the flush, a positive
// value flushes only once the alive WAL bytes reach it. walDirOverride and
// logDirOverride are recorded into the relocated options file per the same
// rules the engine applies; WAL files follow walDirOverride when it points
// outside the checkpoint. On success the sequence number the checkpoint
// represents is returned.
func (b *Builder) CreateCheckpoint(ctx context.Context, targetDir string, flushThresholdBytes uint64, walDirOverride, logDirOverride string) (seq uint64, err error) {
	p := b.provider
	if err := p.CheckStarted(); err != nil {
		return 0, err
	}
	ctx, span := p.GetTracer().Start(ctx, "CheckpointBuilder.CreateCheckpoint")
	defer span.End()
	span.SetAttributes(attribute.String("checkpoint.dir", targetDir))

	logger := p.GetLogger()

	prePayload := hooks.PreCreateCheckpointPayload{TargetDir: targetDir}
	if hookErr := p.GetHookManager().Trigger(ctx, hooks.NewPreCreateCheckpointEvent(prePayload)); hookErr != nil {
		logger.Info("CreateCheckpoint operation cancelled by PreCreateCheckpoint hook", "error", hookErr)
		return 0, fmt.Errorf("operation cancelled by pre-hook: %w", hookErr)
	}

	if _, statErr := b.helper.Stat(targetDir); statErr == nil {
		return 0, &core.InvalidTargetError{Dir: targetDir, Reason: "directory exists"}
	} else if !os.IsNotExist(statErr) {
		return 0, statErr
	}

	parsedTargetDir, err := normalizeTargetDir(targetDir)
	if err != nil {
		return 0, err
	}

	logger.Info("Started the checkpoint process.", "checkpoint_dir", parsedTargetDir)

	stagingDir := parsedTargetDir + stagingDirSuffix
	logger.Info("Checkpoint process using temporary directory.", "staging_dir", stagingDir)

	cleanStagingDirectory(b.helper, logger, stagingDir)
	if err = b.helper.CreateDir(stagingDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create staging directory %s: %w", stagingDir, err)
	}

	defer func() {
		if err != nil {
			checkpointFailuresTotal.Inc()
			logger.Warn("Checkpoint failed, cleaning up staging directory.", "staging_dir", stagingDir, "error", err)
			cleanStagingDirectory(b.helper, logger, stagingDir)
		}
	}()

	resolved := resolveDirs(p.GetDataDir(), parsedTargetDir, stagingDir, walDirOverride, logDirOverride)
	if resolved.newWalDir != stagingDir {
		if _, statErr := b.helper.Stat(resolved.newWalDir); os.IsNotExist(statErr) {
			if err = b.helper.CreateDir(resolved.newWalDir, 0755); err != nil {
				return 0, fmt.Errorf("failed to create wal directory %s: %w", resolved.newWalDir, err)
			}
		}
	}

	// File deletions stay suppressed for the whole enumerate-and-transfer
	// span so the engine cannot reclaim a file between the moment it is
	// listed as live and the moment it is linked or copied.
	disabledFileDeletions := false
	if disableErr := p.DisableFileDeletions(); disableErr == nil {
		disabledFileDeletions = true
	} else if !errors.Is(disableErr, core.ErrNotSupported) {
		err = disableErr
		return 0, err
	}

	transfer := &stagingTransfer{
		builder:     b,
		stagingDir:  stagingDir,
		walDir:      resolved.newWalDir,
		valueLogDir: resolved.valueLogDir,
		valueWalDir: resolved.valueWalDir,
		logger:      logger,
	}
	seq, err = b.CreateCustomCheckpoint(transfer, flushThresholdBytes, false)

	if disabledFileDeletions {
		if enableErr := p.EnableFileDeletions(); err == nil {
			err = enableErr
		}
	}
	if err != nil {
		return 0, err
	}

	// Atomic commit: the target name comes into existence only through this
	// rename, so no concurrent lister can observe a partial checkpoint.
	if err = b.helper.Rename(stagingDir, parsedTargetDir); err != nil {
		return 0, fmt.Errorf("failed to rename staging directory to %s: %w", parsedTargetDir, err)
	}
	if err = b.helper.SyncDir(parsedTargetDir); err != nil {
		return 0, err
	}

	checkpointsCreatedTotal.Inc()
	postPayload := hooks.PostCreateCheckpointPayload{TargetDir: parsedTargetDir, SequenceNumber: seq}
	p.GetHookManager().Trigger(ctx, hooks.NewPostCreateCheckpointEvent(postPayload))

	logger.Info("Checkpoint DONE.", "checkpoint_dir", parsedTargetDir, "sequence_number", seq)
	return seq, nil
}

// CreateCustomCheckpoint captures the live file set and materializes it
// through the supplied transfer capability. CreateCheckpoint uses it with a
// staging-directory transfer; callers with their own destination (remote
// storage, archives) can supply theirs. withChecksums resolves table and
// blob file checksums from the manifest and hands them to Copy.
// Suppressing engine file deletions around this call is the caller's
// responsibility; CreateCheckpoint takes care of it for the local case.
func (b *Builder) CreateCustomCheckpoint(transfer FileTransfer, flushThresholdBytes uint64, withChecksums bool) (uint64, error) {
	set, err := b.enumerateLiveFiles(flushThresholdBytes)
	if err != nil {
		return 0, err
	}
	if err := b.transferLiveFiles(set, transfer, withChecksums); err != nil {
		return 0, err
	}
	return set.sequenceNumber, nil
}

// normalizeTargetDir strips trailing slashes from a target path. A name that
// is empty or consists only of slashes can never become a checkpoint target.
func normalizeTargetDir(targetDir string) (string, error) {
	trimmed := strings.TrimRight(targetDir, "/")
	if trimmed == "" {
		return "", &core.InvalidTargetError{Dir: targetDir, Reason: "name is empty or only slashes"}
	}
	return trimmed, nil
}

// cleanStagingDirectory removes a staging directory, typically stale state
// from an earlier failed attempt. Best-effort: a missing directory is fine,
// and individual deletion failures are logged and skipped.
func cleanStagingDirectory(helper internal.PrivateCheckpointHelper, logger *slog.Logger, stagingDir string) {
	if _, err := helper.Stat(stagingDir); os.IsNotExist(err) {
		return
	}
	logger.Info("Cleaning staging directory.", "staging_dir", stagingDir)
	entries, err := helper.ReadDir(stagingDir)
	if err == nil {
		for _, entry := range entries {
			childPath := filepath.Join(stagingDir, entry.Name())
			if removeErr := helper.RemoveAll(childPath); removeErr != nil {
				logger.Warn("Failed to delete staging file.", "path", childPath, "error", removeErr)
			}
		}
	}
	if removeErr := helper.Remove(stagingDir); removeErr != nil {
		logger.Warn("Failed to delete staging directory.", "staging_dir", stagingDir, "error", removeErr)
	}
}

// resolvedDirs is the outcome of applying the wal/log directory override
// rules for one checkpoint call.
type resolvedDirs struct {
	// valueLogDir is the db_log_dir value recorded in the rewritten options
	// file. Info logs are never copied or linked.
	valueLogDir string
	// valueWalDir is the wal_dir value recorded in the rewritten options
	// file. Empty means the checkpoint directory itself.
	valueWalDir string
	// newWalDir is where WAL files are physically placed during the build.
	newWalDir string
}

// resolveDirs applies the override rules: overrides equal to the source
// database directory or the checkpoint directory collapse to the defaults,
// an explicit external WAL directory is kept as the physical destination,
// and a WAL directory nested under the checkpoint directory is staged inside
// the temporary directory so it travels with the final rename.
func resolveDirs(dataDir, parsedTargetDir, stagingDir, walDirOverride, logDirOverride string) resolvedDirs {
	parsedLogDir := strings.TrimRight(logDirOverride, "/")
	parsedWalDir := strings.TrimRight(walDirOverride, "/")

	var r resolvedDirs
	if parsedLogDir != dataDir && parsedLogDir != parsedTargetDir {
		r.valueLogDir = parsedLogDir
	}

	if parsedWalDir == "" || parsedWalDir == dataDir || parsedWalDir == parsedTargetDir {
		// Empty means the store's own directory, so an opened checkpoint
		// looks for its WAL beside its data files.
		r.newWalDir = stagingDir
	} else {
		r.valueWalDir = parsedWalDir
		prefix := parsedTargetDir + "/"
		if strings.HasPrefix(parsedWalDir, prefix) {
			r.newWalDir = filepath.Join(stagingDir, parsedWalDir[len(prefix):])
		} else {
			r.newWalDir = parsedWalDir
		}
	}
	return r
}

// stagingTransfer materializes checkpoint files into the staging directory,
// routing WAL files to their resolved location and the options file through
// the rewriter. The checksum arguments are ignored here: hard links and
// local copies carry the source bytes verbatim, so there is nothing to
// persist them into. Custom transfers are the consumers of checksums.
type stagingTransfer struct {
	builder     *Builder
	stagingDir  string
	walDir      string
	valueLogDir string
	valueWalDir string
	logger      *slog.Logger
}

var _ FileTransfer = (*stagingTransfer)(nil)

func (t *stagingTransfer) destDir(fileType core.FileType) string {
	// WAL file links and copies may land in another location.
	if fileType == core.FileTypeWAL {
		return t.walDir
	}
	return t.stagingDir
}

func (t *stagingTransfer) Link(srcDir, fname string, fileType core.FileType) error {
	t.logger.Info("Hard linking file.", "file", fname)
	return t.builder.helper.Link(filepath.Join(srcDir, fname), filepath.Join(t.destDir(fileType), fname))
}

func (t *stagingTransfer) Copy(srcDir, fname string, sizeLimitBytes uint64, fileType core.FileType, _, _ string) error {
	t.logger.Info("Copying file.", "file", fname)
	if fileType == core.FileTypeOptions {
		rewriter := NewOptionsFileRewriter(t.builder.helper)
		return rewriter.Rewrite(filepath.Join(srcDir, fname), filepath.Join(t.stagingDir, fname), t.valueLogDir, t.valueWalDir)
	}
	return t.builder.helper.CopyFile(filepath.Join(srcDir, fname), filepath.Join(t.destDir(fileType), fname), sizeLimitBytes)
}

func (t *stagingTransfer) Create(fname, contents string, _ core.FileType) error {
	t.logger.Info("Creating file.", "file", fname)
	return t.builder.helper.WriteFile(filepath.Join(t.stagingDir, fname), []byte(contents), 0644)
}
