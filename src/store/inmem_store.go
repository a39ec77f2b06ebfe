package store

import (
	"sync"

	"github.com/mosaicnetworks/chronicle/src/common"
)

// InmemStore keeps the most recent delivered objects in memory.
type InmemStore struct {
	l         sync.RWMutex
	cacheSize int
	delivered *common.RollingIndex[*Delivered]
}

// NewInmemStore creates an InmemStore holding up to 2*cacheSize objects.
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize: cacheSize,
		delivered: common.NewRollingIndex[*Delivered]("Delivered", cacheSize),
	}
}

// CacheSize implements the Store interface.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// LastIndex implements the Store interface.
func (s *InmemStore) LastIndex() int {
	s.l.RLock()
	defer s.l.RUnlock()

	return s.delivered.LastIndex()
}

// Append implements the Store interface. It sets d.Index.
func (s *InmemStore) Append(d *Delivered) (int, error) {
	s.l.Lock()
	defer s.l.Unlock()

	d.Index = s.delivered.LastIndex() + 1
	return s.delivered.Append(d), nil
}

// Get implements the Store interface.
func (s *InmemStore) Get(index int) (*Delivered, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	return s.delivered.GetItem(index)
}

// Since implements the Store interface.
func (s *InmemStore) Since(skip int) ([]*Delivered, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	return s.delivered.Get(skip)
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

func (s *InmemStore) reset(lastIndex int) {
	s.l.Lock()
	defer s.l.Unlock()

	s.delivered.Reset(lastIndex)
}
