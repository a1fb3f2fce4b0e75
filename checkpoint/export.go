package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/INLOpen/nexuscheckpoint/core"
	"github.com/INLOpen/nexuscheckpoint/hooks"
	"github.com/INLOpen/nexuscheckpoint/internal"
	"go.opentelemetry.io/otel/attribute"
)

// Exporter materializes single-column-family exports: the column family's
// table files plus a metadata description sufficient to import them into
// another store instance.
type Exporter struct {
	provider EngineProvider
	helper   internal.PrivateCheckpointHelper
}

// NewExporter creates a column family exporter borrowing the given engine
// provider.
func NewExporter(provider EngineProvider) *Exporter {
	return NewExporterWithTesting(provider, nil)
}

// NewExporterWithTesting allows substituting the filesystem helper.
func NewExporterWithTesting(provider EngineProvider, helper internal.PrivateCheckpointHelper) *Exporter {
	if helper == nil {
		helper = newHelperCheckpoint()
	}
	return &Exporter{provider: provider, helper: helper}
}

// ExportColumnFamily flushes the named column family and lays its table
// files down in exportDir, which must not exist yet. The returned metadata
// describes every exported file with its level and key/sequence bounds, in
// the same order the files appear on disk in the source store.
func (e *Exporter) ExportColumnFamily(ctx context.Context, columnFamily, exportDir string) (meta *core.ExportedMetadata, err error) {
	p := e.provider
	if err := p.CheckStarted(); err != nil {
		return nil, err
	}
	ctx, span := p.GetTracer().Start(ctx, "ColumnFamilyExporter.ExportColumnFamily")
	defer span.End()
	span.SetAttributes(
		attribute.String("export.column_family", columnFamily),
		attribute.String("export.dir", exportDir),
	)

	logger := p.GetLogger()

	prePayload := hooks.PreExportColumnFamilyPayload{ColumnFamily: columnFamily, ExportDir: exportDir}
	if hookErr := p.GetHookManager().Trigger(ctx, hooks.NewPreExportColumnFamilyEvent(prePayload)); hookErr != nil {
		logger.Info("ExportColumnFamily operation cancelled by PreExportColumnFamily hook", "error", hookErr)
		return nil, fmt.Errorf("operation cancelled by pre-hook: %w", hookErr)
	}

	if _, statErr := e.helper.Stat(exportDir); statErr == nil {
		return nil, &core.InvalidTargetError{Dir: exportDir, Reason: "directory exists"}
	} else if !os.IsNotExist(statErr) {
		return nil, statErr
	}

	parsedExportDir, err := normalizeTargetDir(exportDir)
	if err != nil {
		return nil, err
	}

	logger.Info("Started the export process.", "column_family", columnFamily, "export_dir", parsedExportDir)

	stagingDir := parsedExportDir + stagingDirSuffix
	cleanStagingDirectory(e.helper, logger, stagingDir)
	if err = e.helper.CreateDir(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", stagingDir, err)
	}

	// Once the rename has happened a failure must tear down the final
	// directory, not the staging one.
	movedToFinal := false
	defer func() {
		if err != nil {
			exportFailuresTotal.Inc()
			cleanupDir := stagingDir
			if movedToFinal {
				cleanupDir = parsedExportDir
			}
			logger.Warn("Export failed, cleaning up.", "dir", cleanupDir, "error", err)
			cleanStagingDirectory(e.helper, logger, cleanupDir)
		}
	}()

	// The flush pins the column family's full state into table files, so
	// the export needs no WAL segments at all.
	if err = p.FlushColumnFamily(columnFamily); err != nil {
		return nil, err
	}

	disabledFileDeletions := false
	if disableErr := p.DisableFileDeletions(); disableErr == nil {
		disabledFileDeletions = true
	} else if !errors.Is(disableErr, core.ErrNotSupported) {
		err = disableErr
		return nil, err
	}

	cfMeta, metaErr := p.GetColumnFamilyMetaData(columnFamily)
	if metaErr == nil {
		err = e.exportFilesInMetaData(cfMeta, stagingDir)
	} else {
		err = metaErr
	}

	if disabledFileDeletions {
		if enableErr := p.EnableFileDeletions(); err == nil {
			err = enableErr
		}
	}
	if err != nil {
		return nil, err
	}

	if err = e.helper.Rename(stagingDir, parsedExportDir); err != nil {
		return nil, fmt.Errorf("failed to rename staging directory to %s: %w", parsedExportDir, err)
	}
	movedToFinal = true
	if err = e.helper.SyncDir(parsedExportDir); err != nil {
		return nil, err
	}

	meta = &core.ExportedMetadata{ComparatorName: cfMeta.ComparatorName}
	for _, level := range cfMeta.Levels {
		for _, file := range level.Files {
			meta.Files = append(meta.Files, core.ExportedFileMetadata{
				FileName:             file.FileName,
				DBPath:               parsedExportDir,
				FileNumber:           file.FileNumber,
				SizeBytes:            file.SizeBytes,
				SmallestSeqNum:       file.SmallestSeqNum,
				LargestSeqNum:        file.LargestSeqNum,
				SmallestKey:          file.SmallestKey,
				LargestKey:           file.LargestKey,
				Level:                level.Level,
				OldestBlobFileNumber: file.OldestBlobFileNumber,
			})
		}
	}

	exportsCreatedTotal.Inc()
	postPayload := hooks.PostExportColumnFamilyPayload{
		ColumnFamily: columnFamily,
		ExportDir:    parsedExportDir,
		FileCount:    len(meta.Files),
	}
	p.GetHookManager().Trigger(ctx, hooks.NewPostExportColumnFamilyEvent(postPayload))

	logger.Info("Export DONE.", "column_family", columnFamily, "export_dir", parsedExportDir, "file_count", len(meta.Files))
	return meta, nil
}

// exportFilesInMetaData transfers every table file the metadata names into
// the staging directory, hard-linking while possible and copying after the
// first link failure. Any file the metadata names that is not a well-formed
// table file name means the metadata and the on-disk state disagree.
func (e *Exporter) exportFilesInMetaData(cfMeta core.ColumnFamilyMetaData, stagingDir string) error {
	p := e.provider
	dataDir := p.GetDataDir()
	logger := p.GetLogger()

	state := newTransferState()
	fileCount := 0
	for _, level := range cfMeta.Levels {
		for _, file := range level.Files {
			_, fileType, ok := core.ParseFileName(file.FileName)
			if !ok {
				return &core.CorruptionError{Message: fmt.Sprintf("cannot parse exported file name %q", file.FileName)}
			}
			if fileType != core.FileTypeTable {
				return &core.CorruptionError{Message: fmt.Sprintf("file %q in column family metadata is not a table file", file.FileName)}
			}

			src := filepath.Join(dataDir, file.FileName)
			dst := filepath.Join(stagingDir, file.FileName)
			if state.sameFS {
				linkErr := e.helper.Link(src, dst)
				if linkErr == nil {
					logger.Info("Hard linking file.", "file", file.FileName)
					fileCount++
					continue
				}
				if !isLinkUnsupported(linkErr) {
					return linkErr
				}
				state.sameFS = false
				hardLinkFallbacksTotal.Inc()
			}
			logger.Info("Copying file.", "file", file.FileName)
			if err := e.helper.CopyFile(src, dst, 0); err != nil {
				return err
			}
			fileCount++
		}
	}
	logger.Info("Number of table files in column family.", "count", fileCount)
	return nil
}
