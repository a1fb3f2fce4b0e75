package checkpoint

import (
	"bytes"
	"fmt"

	"github.com/INLOpen/nexuscheckpoint/config"
	"github.com/INLOpen/nexuscheckpoint/internal"
)

// OptionsFileRewriter copies a stored options file while replacing the
// directory fields that must not point back at the source database. A
// checkpoint opened with the original wal_dir would replay, and then
// delete, the live database's WAL files.
type OptionsFileRewriter struct {
	helper internal.PrivateCheckpointHelper
}

func NewOptionsFileRewriter(helper internal.PrivateCheckpointHelper) *OptionsFileRewriter {
	return &OptionsFileRewriter{helper: helper}
}

// Rewrite reads the options file at src, sets db_log_dir and wal_dir to the
// given values and writes the result to dst. A source file that fails to
// parse fails the whole operation; silently propagating an unparseable
// options file would leave the checkpoint pointing at the live database.
func (r *OptionsFileRewriter) Rewrite(src, dst, dbLogDir, walDir string) error {
	data, err := r.helper.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read options file %s: %w", src, err)
	}
	opts, err := config.LoadOptions(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse options file %s: %w", src, err)
	}
	opts.DBLogDir = dbLogDir
	opts.WalDir = walDir

	var buf bytes.Buffer
	if err := opts.Write(&buf); err != nil {
		return fmt.Errorf("failed to serialize options file: %w", err)
	}
	return r.helper.WriteFile(dst, buf.Bytes(), 0644)
}
