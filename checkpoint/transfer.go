package checkpoint

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"

	"github.com/INLOpen/nexuscheckpoint/core"
)

// FileTransfer is the capability a checkpoint is materialized through. The
// builder binds one to the staging directory per call; callers of
// CreateCustomCheckpoint may supply their own, e.g. to stream files into
// remote storage.
type FileTransfer interface {
	// Link creates fname inside the checkpoint as a hard link to the source
	// file. Returning core.ErrNotSupported or a cross-device link error
	// switches the remainder of the operation to copying.
	Link(srcDir, fname string, fileType core.FileType) error
	// Copy transfers fname, reading at most sizeLimitBytes when positive.
	// The checksum pair describes the source file when known, or carries the
	// unknown sentinels.
	Copy(srcDir, fname string, sizeLimitBytes uint64, fileType core.FileType, checksumFuncName, checksumValue string) error
	// Create writes a file with the given contents.
	Create(fname, contents string, fileType core.FileType) error
}

// transferState tracks whether hard links are still believed possible. One
// value is shared by the table/blob pass and the WAL pass of a single call;
// the first unsupported link flips it for the rest of that call.
type transferState struct {
	sameFS bool
}

func newTransferState() *transferState {
	return &transferState{sameFS: true}
}

// isLinkUnsupported reports whether a link failure means "this filesystem
// pairing cannot hard-link" as opposed to a genuine I/O error.
func isLinkUnsupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, core.ErrNotSupported) {
		return true
	}
	return errors.Is(err, syscall.EXDEV) || errors.Is(err, syscall.ENOTSUP)
}

// linkOrCopy attempts a hard link while the state allows it, falling back to
// a copy once an attempt signals unsupported. Any other error is fatal.
func (st *transferState) linkOrCopy(transfer FileTransfer, srcDir, fname string, fileType core.FileType, checksumFuncName, checksumValue string) error {
	if st.sameFS {
		err := transfer.Link(srcDir, fname, fileType)
		if err == nil {
			return nil
		}
		if !isLinkUnsupported(err) {
			return err
		}
		st.sameFS = false
		hardLinkFallbacksTotal.Inc()
	}
	return transfer.Copy(srcDir, fname, 0, fileType, checksumFuncName, checksumValue)
}

type tableBlobFile struct {
	fname    string
	number   uint64
	fileType core.FileType
}

// transferLiveFiles materializes a captured live file set through the given
// transfer capability: non-table files first, then the deferred table/blob
// linking pass, the synthesized CURRENT marker, and finally the WAL pass.
func (b *Builder) transferLiveFiles(set *liveFileSet, transfer FileTransfer, withChecksums bool) error {
	p := b.provider
	dataDir := p.GetDataDir()
	logger := p.GetLogger()

	var manifestFileName, currentFileName string
	var tableAndBlobFiles []tableBlobFile

	for _, liveFile := range set.files {
		number, fileType, ok := core.ParseFileName(liveFile)
		if !ok {
			return &core.CorruptionError{Message: fmt.Sprintf("cannot parse live file name %q", liveFile)}
		}
		switch fileType {
		case core.FileTypeCurrent:
			// CURRENT is synthesized at the end from the manifest name; its
			// contents can change while the checkpoint is in flight.
			currentFileName = liveFile
			continue
		case core.FileTypeManifest:
			manifestFileName = liveFile
		case core.FileTypeTable, core.FileTypeBlob:
			tableAndBlobFiles = append(tableAndBlobFiles, tableBlobFile{fname: liveFile, number: number, fileType: fileType})
			continue
		}

		// Non-table, non-blob files are copied. The manifest is capped at
		// the size captured during enumeration so later growth stays out of
		// the checkpoint.
		var sizeLimit uint64
		if fileType == core.FileTypeManifest {
			sizeLimit = set.manifestSizeBytes
		}
		if err := transfer.Copy(dataDir, liveFile, sizeLimit, fileType, core.UnknownChecksumFuncName, core.UnknownChecksumValue); err != nil {
			return err
		}
	}

	var checksums *FileChecksumIndex
	if withChecksums && manifestFileName != "" {
		// Missing per-file entries are fine (legacy files); a manifest that
		// cannot be parsed at all is not.
		var err error
		checksums, err = NewFileChecksumIndexFromManifest(b.helper, filepath.Join(dataDir, manifestFileName), set.manifestSizeBytes)
		if err != nil {
			return err
		}
	}

	state := newTransferState()
	for _, file := range tableAndBlobFiles {
		checksumFuncName, checksumValue := checksums.Lookup(file.number)
		if err := state.linkOrCopy(transfer, dataDir, file.fname, file.fileType, checksumFuncName, checksumValue); err != nil {
			return err
		}
	}

	if currentFileName != "" && manifestFileName != "" {
		if err := transfer.Create(currentFileName, manifestFileName+"\n", core.FileTypeCurrent); err != nil {
			return err
		}
	}

	logger.Info("Number of WAL files.", "count", len(set.walFiles))

	// WAL pass: only alive logs that are still needed. When a flush was
	// performed, logs below the minimum required number are already
	// reflected in the table files and are skipped.
	walDir := p.GetDBOptions().GetWalDir(dataDir)
	var walToTransfer []core.WalFileDescriptor
	for _, wf := range set.walFiles {
		if wf.State != core.WalFileAlive {
			continue
		}
		if set.flushedMemtable && wf.LogNumber < set.minLogNumber {
			continue
		}
		walToTransfer = append(walToTransfer, wf)
	}

	for i, wf := range walToTransfer {
		if i+1 == len(walToTransfer) {
			// The newest alive log is presumed to still be receiving
			// appends: copy exactly the bytes it held at enumeration time,
			// never link.
			if err := transfer.Copy(walDir, wf.PathName, wf.SizeBytes, core.FileTypeWAL, core.UnknownChecksumFuncName, core.UnknownChecksumValue); err != nil {
				return err
			}
			break
		}
		if err := state.linkOrCopy(transfer, walDir, wf.PathName, core.FileTypeWAL, core.UnknownChecksumFuncName, core.UnknownChecksumValue); err != nil {
			return err
		}
	}
	return nil
}
