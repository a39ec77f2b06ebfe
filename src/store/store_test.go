package store

import (
	"fmt"
	"os"
	"testing"

	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delivered(i int) *Delivered {
	return &Delivered{
		Timestamp:   int64(1000 + i),
		Payload:     []byte(fmt.Sprintf("payload %d", i)),
		Signatures:  []byte{byte(i)},
		DeliveredAt: int64(2000 + i),
	}
}

func TestInmemStore(t *testing.T) {
	s := NewInmemStore(5)
	assert.Equal(t, -1, s.LastIndex())

	for i := 0; i < 12; i++ {
		index, err := s.Append(delivered(i))
		require.NoError(t, err)
		assert.Equal(t, i, index)
	}

	d, err := s.Get(11)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload 11"), d.Payload)

	_, err = s.Get(0)
	assert.True(t, common.IsStore(err, common.TooLate))

	_, err = s.Get(12)
	assert.True(t, common.IsStore(err, common.KeyNotFound))

	since, err := s.Since(8)
	require.NoError(t, err)
	require.Len(t, since, 3)
	assert.Equal(t, 9, since[0].Index)
}

func TestBadgerStore(t *testing.T) {
	dir, err := os.MkdirTemp("", "chronicle-badger")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	logger := common.NewTestEntry(t, logrus.InfoLevel)

	s, err := NewBadgerStore(2, dir, logger)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		index, err := s.Append(delivered(i))
		require.NoError(t, err)
		assert.Equal(t, i, index)
	}

	// evicted from the cache, served from the database
	d, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), d.Timestamp)
	assert.Equal(t, []byte{1}, d.Signatures)

	all, err := s.Since(-1)
	require.NoError(t, err)
	require.Len(t, all, 10)
	for i, d := range all {
		assert.Equal(t, i, d.Index)
	}

	require.NoError(t, s.Close())

	// reopen and continue the sequence
	s, err = NewBadgerStore(2, dir, logger)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 9, s.LastIndex())

	index, err := s.Append(delivered(10))
	require.NoError(t, err)
	assert.Equal(t, 10, index)

	d, err = s.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload 5"), d.Payload)

	_, err = s.Get(11)
	assert.True(t, common.IsStore(err, common.KeyNotFound))
}
