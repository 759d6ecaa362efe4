// Package journal keeps the history of bootstrap runs in a badger database
// inside the data directory.
package journal

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/chainboot/src/common"
	"github.com/sirupsen/logrus"
)

const (
	runPrefix = "run"
	dataType  = "Run"
)

// Journal is an append-only list of Records.
type Journal struct {
	sync.Mutex

	db     *badger.DB
	path   string
	lastID uint64
	logger *logrus.Entry
}

// Open opens the journal at path, creating it if needed.
func Open(path string, logger *logrus.Entry) (*Journal, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Logger = logger

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, cm.WrapError(cm.IOError, err, "cannot open journal %s", path)
	}

	j := &Journal{
		db:     handle,
		path:   path,
		logger: logger,
	}

	last, err := j.dbLast()
	switch {
	case err == nil:
		j.lastID = last.ID
	case cm.IsStore(err, cm.Empty):
	default:
		handle.Close()
		return nil, err
	}

	return j, nil
}

// Path ...
func (j *Journal) Path() string {
	return j.path
}

// Append assigns the next ID to r and stores it.
func (j *Journal) Append(r *Record) error {
	j.Lock()
	defer j.Unlock()

	if j.db == nil {
		return cm.NewStoreErr(dataType, cm.Closed, "")
	}

	r.ID = j.lastID + 1

	if err := j.dbSetRecord(r); err != nil {
		return err
	}

	j.lastID = r.ID

	j.logger.WithFields(logrus.Fields{
		"id":      r.ID,
		"stage":   r.Stage,
		"success": r.Success,
	}).Debug("Run recorded")

	return nil
}

// Get returns the record with the given ID.
func (j *Journal) Get(id uint64) (*Record, error) {
	j.Lock()
	defer j.Unlock()

	if j.db == nil {
		return nil, cm.NewStoreErr(dataType, cm.Closed, "")
	}

	return j.dbGetRecord(id)
}

// Last returns the most recent record.
func (j *Journal) Last() (*Record, error) {
	j.Lock()
	defer j.Unlock()

	if j.db == nil {
		return nil, cm.NewStoreErr(dataType, cm.Closed, "")
	}

	return j.dbLast()
}

// List returns at most n records, most recent first. n <= 0 returns all of
// them.
func (j *Journal) List(n int) ([]*Record, error) {
	j.Lock()
	defer j.Unlock()

	if j.db == nil {
		return nil, cm.NewStoreErr(dataType, cm.Closed, "")
	}

	return j.dbList(n)
}

// Close ...
func (j *Journal) Close() error {
	j.Lock()
	defer j.Unlock()

	if j.db == nil {
		return nil
	}

	err := j.db.Close()
	j.db = nil
	return err
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

func (j *Journal) dbSetRecord(r *Record) error {
	tx := j.db.NewTransaction(true)
	defer tx.Discard()

	val, err := r.Marshal()
	if err != nil {
		return err
	}

	//insert [run_id] => [record bytes]
	if err := tx.Set(runKey(r.ID), val); err != nil {
		return err
	}

	return tx.Commit()
}

func (j *Journal) dbGetRecord(id uint64) (*Record, error) {
	var data []byte
	key := runKey(id)

	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, string(key))
	}

	r := new(Record)
	if err := r.Unmarshal(data); err != nil {
		return nil, err
	}

	return r, nil
}

func (j *Journal) dbLast() (*Record, error) {
	res, err := j.dbList(1)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, cm.NewStoreErr(dataType, cm.Empty, "")
	}
	return res[0], nil
}

func (j *Journal) dbList(n int) ([]*Record, error) {
	res := []*Record{}

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runPrefix + "_")
		start := append([]byte(runPrefix+"_"), 0xff)

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if n > 0 && len(res) >= n {
				break
			}

			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			r := new(Record)
			if err := r.Unmarshal(data); err != nil {
				return err
			}
			res = append(res, r)
		}

		return nil
	})

	return res, err
}

func runKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", runPrefix, id))
}

func isDBKeyNotFound(err error) bool {
	return err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(dataType, cm.KeyNotFound, key)
		}
	}
	return err
}
