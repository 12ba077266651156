package common

import "fmt"

// StoreErrType classifies the errors returned by the stores.
type StoreErrType uint32

const (
	// KeyNotFound is returned when reading a key that was never written.
	KeyNotFound StoreErrType = iota
	// Corrupted is returned when a stored value cannot be decoded.
	Corrupted
)

func (t StoreErrType) String() string {
	switch t {
	case KeyNotFound:
		return "not found"
	case Corrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}

// StoreErr is a typed storage error. dataType names the kind of record, for
// example "Snapshot" or "Counter".
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

// Key returns the database key the error refers to.
func (e StoreErr) Key() string {
	return e.key
}

func (e StoreErr) Error() string {
	return fmt.Sprintf("%s %q: %s", e.dataType, e.key, e.errType)
}

// IsStore reports whether err is a StoreErr of type t.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
