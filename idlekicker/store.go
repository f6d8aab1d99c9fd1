package idlekicker

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	cmn "github.com/tendermint/tmlibs/common"

	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/errors"
)

// snapshot is last_active.json's on-disk shape: a flat list rather than a
// map so key ordering in the file is stable across writes.
type snapshot struct {
	Entries []entry `json:"entries"`
}

type entry struct {
	PubKey string `json:"pubkey"`
	Time   uint64 `json:"time"`
}

func (s snapshot) toMap() map[chain.PubKey]uint64 {
	out := make(map[chain.PubKey]uint64, len(s.Entries))
	for _, e := range s.Entries {
		pk, err := chain.ParsePubKey(e.PubKey)
		if err != nil {
			continue
		}
		out[pk] = e.Time
	}
	return out
}

func snapshotFromMap(m map[chain.PubKey]uint64) snapshot {
	out := snapshot{Entries: make([]entry, 0, len(m))}
	for pk, lastActive := range m {
		out.Entries = append(out.Entries, entry{PubKey: pk.String(), Time: lastActive})
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].PubKey < out.Entries[j].PubKey })
	return out
}

func loadSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, errors.Wrap(err, "idlekicker: reading snapshot")
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot{}, errors.Wrap(err, "idlekicker: decoding snapshot")
	}
	return snap, nil
}

func saveSnapshot(path string, snap snapshot) error {
	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return errors.Wrap(err, "idlekicker: encoding snapshot")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "idlekicker: writing snapshot temp file")
	}
	return os.Rename(tmp, path)
}

func ensureDir(path string) error {
	return cmn.EnsureDir(filepath.Dir(path), 0755)
}
