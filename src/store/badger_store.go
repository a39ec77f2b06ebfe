package store

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	deliveredPrefix = "delivered"
	lastIndexKey    = "last_index"
)

// BadgerStore persists delivered objects in a Badger database, with an
// InmemStore in front of it for recent reads.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
}

// NewBadgerStore opens the database in path, creating it if needed, and
// resumes the delivery sequence where it stopped.
func NewBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		opts = opts.WithLogger(logger.WithField("ns", "badger"))
	} else {
		opts = opts.WithLogger(nil)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger database in %s", path)
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(cacheSize),
		db:         handle,
		path:       path,
	}

	last, err := store.dbGetLastIndex()
	if err != nil {
		handle.Close()
		return nil, err
	}
	store.inmemStore.reset(last)

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func deliveredKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%09d", deliveredPrefix, index))
}

/*******************************************************************************
Store interface
*******************************************************************************/

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.inmemStore.CacheSize()
}

// LastIndex implements the Store interface.
func (s *BadgerStore) LastIndex() int {
	return s.inmemStore.LastIndex()
}

// Append implements the Store interface. The record is written to the
// database before it becomes visible in the cache.
func (s *BadgerStore) Append(d *Delivered) (int, error) {
	s.inmemStore.l.Lock()
	defer s.inmemStore.l.Unlock()

	d.Index = s.inmemStore.delivered.LastIndex() + 1

	if err := s.dbSetDelivered(d); err != nil {
		return -1, err
	}

	return s.inmemStore.delivered.Append(d), nil
}

// Get implements the Store interface. It falls back to the database for
// objects that left the cache.
func (s *BadgerStore) Get(index int) (*Delivered, error) {
	d, err := s.inmemStore.Get(index)
	if err == nil {
		return d, nil
	}
	if !common.IsStore(err, common.TooLate) {
		return nil, err
	}
	return s.dbGetDelivered(index)
}

// Since implements the Store interface.
func (s *BadgerStore) Since(skip int) ([]*Delivered, error) {
	res, err := s.inmemStore.Since(skip)
	if err == nil {
		return res, nil
	}
	if !common.IsStore(err, common.TooLate) {
		return nil, err
	}

	last := s.LastIndex()
	res = make([]*Delivered, 0, last-skip)
	for i := skip + 1; i <= last; i++ {
		d, err := s.Get(i)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

// StorePath returns the full path of the underlying Badger database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func (s *BadgerStore) dbGetLastIndex() (int, error) {
	last := -1
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastIndexKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			last = int(int64(binary.BigEndian.Uint64(val)))
			return nil
		})
	})
	if err != nil {
		return -1, errors.Wrap(err, "reading last index")
	}
	return last, nil
}

func (s *BadgerStore) dbSetDelivered(d *Delivered) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	val, err := d.Marshal()
	if err != nil {
		return err
	}

	// insert [index] => [Delivered]
	if err := tx.Set(deliveredKey(d.Index), val); err != nil {
		return err
	}

	var last [8]byte
	binary.BigEndian.PutUint64(last[:], uint64(int64(d.Index)))
	if err := tx.Set([]byte(lastIndexKey), last[:]); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *BadgerStore) dbGetDelivered(index int) (*Delivered, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deliveredKey(index))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil, common.NewStoreErr("Delivered", common.KeyNotFound, strconv.Itoa(index))
	}
	if err != nil {
		return nil, err
	}

	d := new(Delivered)
	if err := d.Unmarshal(data); err != nil {
		return nil, err
	}

	return d, nil
}
