// Package whitelist implements the hash whitelist that WhitelistHash and
// RemoveHash polls govern: an allow-list of 32-byte digests (e.g. approved
// sidechain asset or block hashes) that other subsystems consult.
package whitelist

import (
	"encoding/hex"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bytom/federation/errors"
)

// Manager is the disk-backed whitelist. It implements
// voting.WhitelistMutator.
type Manager struct {
	mu     sync.RWMutex
	path   string
	hashes map[[32]byte]bool
	logger *logrus.Entry
}

// NewManager loads the whitelist from path (whitelist.json), creating an
// empty one if the file does not exist yet.
func NewManager(path string) (*Manager, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	snap, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		path:   path,
		hashes: make(map[[32]byte]bool),
		logger: logrus.WithField("module", "whitelist"),
	}
	for _, hx := range snap.Hashes {
		h, err := decodeHash(hx)
		if err != nil {
			return nil, errors.Wrap(err, "whitelist: loading snapshot entry")
		}
		m.hashes[h] = true
	}
	return m, nil
}

// Has reports whether hash is currently whitelisted.
func (m *Manager) Has(hash [32]byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hashes[hash]
}

// List returns all whitelisted hashes, hex-encoded, in no particular order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.hashes))
	for h := range m.hashes {
		out = append(out, hex.EncodeToString(h[:]))
	}
	return out
}

// AddHash whitelists hash, persisting the change. Re-adding an already
// whitelisted hash is a no-op.
func (m *Manager) AddHash(hash [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[hash] {
		return nil
	}
	m.hashes[hash] = true
	if err := m.persistLocked(); err != nil {
		delete(m.hashes, hash)
		return err
	}
	m.logger.WithField("hash", hex.EncodeToString(hash[:])).Info("whitelist: hash added")
	return nil
}

// RemoveHash de-whitelists hash, persisting the change. Removing an
// already-absent hash is a no-op.
func (m *Manager) RemoveHash(hash [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hashes[hash] {
		return nil
	}
	delete(m.hashes, hash)
	if err := m.persistLocked(); err != nil {
		m.hashes[hash] = true
		return err
	}
	m.logger.WithField("hash", hex.EncodeToString(hash[:])).Info("whitelist: hash removed")
	return nil
}

func (m *Manager) persistLocked() error {
	snap := snapshot{Hashes: make([]string, 0, len(m.hashes))}
	for h := range m.hashes {
		snap.Hashes = append(snap.Hashes, hex.EncodeToString(h[:]))
	}
	if err := saveSnapshot(m.path, snap); err != nil {
		return errors.Persistence(err, "whitelist: saving snapshot")
	}
	return nil
}

func decodeHash(hx string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(hx)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errors.New("whitelist: hash must be 32 bytes")
	}
	copy(out[:], b)
	return out, nil
}
