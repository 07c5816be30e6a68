package persist

import "errors"

// Metadata identifies the format of a persisted file or database, the
// way the teacher's persist.Metadata guards every bolt database rivined
// opens.
type Metadata struct {
	Header  string
	Version string
}

var (
	// ErrBadHeader indicates that the file opened does not have the
	// expected header.
	ErrBadHeader = errors.New("wrong header")

	// ErrBadVersion indicates that the file opened has an unsupported
	// version.
	ErrBadVersion = errors.New("incompatible version")
)
