package federation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	cmn "github.com/tendermint/tmlibs/common"

	"github.com/bytom/federation/errors"
)

// loadSnapshot reads federation.json, returning an empty Snapshot if the
// file does not exist yet (first run before genesis seeding).
func loadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "federation: reading snapshot")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "federation: decoding snapshot")
	}
	return snap, nil
}

// saveSnapshot writes snap to path via the teacher's
// encode-to-buffer-then-write pattern (config.ExportFederationFile),
// hardened with a temp-file-plus-rename so a crash mid-write can never
// leave a torn federation.json behind.
func saveSnapshot(path string, snap Snapshot) error {
	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return errors.Wrap(err, "federation: encoding snapshot")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "federation: writing snapshot temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "federation: renaming snapshot into place")
	}
	return nil
}

// ensureDir creates the snapshot's parent directory, matching the
// teacher's cmn.EnsureDir use in config/config.go's own data-directory
// bootstrap.
func ensureDir(path string) error {
	return cmn.EnsureDir(filepath.Dir(path), 0755)
}
