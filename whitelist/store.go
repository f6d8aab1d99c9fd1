package whitelist

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	cmn "github.com/tendermint/tmlibs/common"

	"github.com/bytom/federation/errors"
)

// snapshot is whitelist.json's on-disk shape.
type snapshot struct {
	Hashes []string `json:"hashes"`
}

func loadSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, errors.Wrap(err, "whitelist: reading snapshot")
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot{}, errors.Wrap(err, "whitelist: decoding snapshot")
	}
	return snap, nil
}

func saveSnapshot(path string, snap snapshot) error {
	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return errors.Wrap(err, "whitelist: encoding snapshot")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "whitelist: writing snapshot temp file")
	}
	return os.Rename(tmp, path)
}

func ensureDir(path string) error {
	return cmn.EnsureDir(filepath.Dir(path), 0755)
}
