package store

import "fmt"

// ErrorCode tags a store failure, matching the teacher's ErrorCode/TxError
// pattern (consensus/errors.go) generalized to the store layer, and the
// original's per-operation DbGetError/DbPutError/... taxonomy
// (original_source/src/bip300/dbs/util.rs) collapsed into one type per
// operation kind since Go error wrapping (errors.Is/As) covers what the
// Rust source needed distinct types for.
type ErrorCode string

const (
	ErrNotFound ErrorCode = "STORE_ERR_NOT_FOUND"
	ErrCorrupt  ErrorCode = "STORE_ERR_CORRUPT"
	ErrIO       ErrorCode = "STORE_ERR_IO"
)

type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func errNotFound(msg string) error {
	return &Error{Code: ErrNotFound, Msg: msg}
}

func errCorrupt(msg string) error {
	return &Error{Code: ErrCorrupt, Msg: msg}
}

func errIO(msg string, err error) error {
	return &Error{Code: ErrIO, Msg: msg, Err: err}
}
