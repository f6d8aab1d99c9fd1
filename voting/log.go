package voting

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bytom/federation/errors"
)

// PollLog is the append-only store backing a Voting Manager's poll
// bookkeeping: an embedded LevelDB keyed by monotonically increasing
// record id, per §9's "forward-compatible implementation should use an
// append-only log keyed by monotonically increasing record id". Every
// mutation is written and synced to disk before the in-memory change is
// acknowledged to the caller; replaying the keyspace in order from empty
// reconstructs the same poll map (§6, §9).
type PollLog struct {
	mu     sync.Mutex
	db     *leveldb.DB
	nextID uint64
}

// OpenPollLog opens (creating if absent) the poll log at path.
func OpenPollLog(path string) (*PollLog, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "voting: opening poll log")
	}

	l := &PollLog{db: db}
	iter := db.NewIterator(nil, nil)
	for iter.Next() {
		l.nextID = decodeRecordKey(iter.Key()) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "voting: scanning poll log")
	}
	return l, nil
}

// Append writes rec under the next sequential key and syncs before
// returning.
func (l *PollLog) Append(rec logRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "voting: marshaling log record")
	}

	key := encodeRecordKey(l.nextID)
	if err := l.db.Put(key, payload, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "voting: appending log record")
	}
	l.nextID++
	return nil
}

// Close closes the underlying database.
func (l *PollLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}

// Replay reads every record from the log in record-id order, rebuilding
// the sequence a running node appended at startup.
func Replay(path string) ([]logRecord, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "voting: opening poll log for replay")
	}
	defer db.Close()

	var records []logRecord
	iter := db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var rec logRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, errors.Wrap(err, "voting: decoding poll log record")
		}
		records = append(records, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "voting: iterating poll log")
	}
	return records, nil
}

func encodeRecordKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func decodeRecordKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
