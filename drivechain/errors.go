package drivechain

import (
	"fmt"

	"github.com/octobocto/bip300301-enforcer/types"
)

// ErrorCode tags a per-message validation failure, matching the teacher's
// ErrorCode/TxError pattern in consensus/errors.go.
type ErrorCode string

const (
	ErrInactiveSidechain    ErrorCode = "ERR_INACTIVE_SIDECHAIN"
	ErrInvalidM6            ErrorCode = "ERR_INVALID_M6"
	ErrOldCtipUnspent       ErrorCode = "ERR_OLD_CTIP_UNSPENT"
	ErrNotAcceptedByMiners  ErrorCode = "ERR_NOT_ACCEPTED_BY_MINERS"
	ErrBmmRequestExpired    ErrorCode = "ERR_BMM_REQUEST_EXPIRED"
	ErrMultipleBmmBlocks    ErrorCode = "ERR_MULTIPLE_BMM_BLOCKS"
	ErrM4VariantUnsupported ErrorCode = "ERR_M4_VARIANT_UNSUPPORTED"
	ErrDuplicateDrivechainOutput ErrorCode = "ERR_DUPLICATE_DRIVECHAIN_OUTPUT"
)

// ConnectError is the error type returned by block connection when a
// message fails validation. The sidechain number is carried where the
// original's error variants carry one, so callers can report which slot
// was implicated.
type ConnectError struct {
	Code            ErrorCode
	SidechainNumber types.SidechainNumber
	Msg             string
}

func (e *ConnectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s (slot %d)", e.Code, e.SidechainNumber)
	}
	return fmt.Sprintf("%s (slot %d): %s", e.Code, e.SidechainNumber, e.Msg)
}

func connErr(code ErrorCode, slot types.SidechainNumber, msg string) error {
	return &ConnectError{Code: code, SidechainNumber: slot, Msg: msg}
}
