package common

import "fmt"

// StoreErrType enumerates the failures of the delivered-object stores.
type StoreErrType uint32

const (
	// KeyNotFound means nothing is stored under the requested key.
	KeyNotFound StoreErrType = iota
	// TooLate means the item was rolled out of a bounded cache.
	TooLate
	// SkippedIndex means an insertion would leave a gap in the index.
	SkippedIndex
	// Empty means the store holds no items yet.
	Empty
	// KeyAlreadyExists means an item is already stored under the key.
	KeyAlreadyExists
)

// StoreErr is the error returned by the stores. It carries the kind of data
// that was accessed and the key, so callers can log something useful.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr creates a StoreErr.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error implements the error interface.
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case TooLate:
		m = "Too Late"
	case SkippedIndex:
		m = "Skipped Index"
	case Empty:
		m = "Empty"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
