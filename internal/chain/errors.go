package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// FailureKind classifies why a write did not succeed.
type FailureKind string

const (
	// FailureRejected: the wallet refused or could not sign/broadcast.
	FailureRejected FailureKind = "rejected"
	// FailureReverted: the contract rejected the call.
	FailureReverted FailureKind = "reverted"
	// FailureTimedOut: the optional confirmation deadline passed.
	FailureTimedOut FailureKind = "timed_out"
)

// TxError is the failure outcome of a write. Reason is the human-readable
// text from the wallet or the contract's revert string, and may be empty.
type TxError struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (e *TxError) Error() string {
	switch {
	case e.Reason != "":
		return e.Reason
	case e.Err != nil:
		return "transaction " + string(e.Kind) + ": " + e.Err.Error()
	default:
		return "transaction " + string(e.Kind)
	}
}

func (e *TxError) Unwrap() error { return e.Err }

// Reason extracts the user-facing reason from a write failure. It returns
// "" when the adapter supplied none, so callers can apply their own default.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Reason
	}
	return err.Error()
}

// IsKind reports whether err is a *TxError of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var txErr *TxError
	return errors.As(err, &txErr) && txErr.Kind == kind
}

const revertPrefix = "execution reverted"

// revertReason digs the revert string out of an RPC error. ok is false when
// err does not describe a revert at all.
func revertReason(err error) (reason string, ok bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, isString := dataErr.ErrorData().(string); isString {
			if data, decErr := hexutil.Decode(hexData); decErr == nil {
				if unpacked, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return unpacked, true
				}
			}
		}
	}

	msg := err.Error()
	i := strings.Index(msg, revertPrefix)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimPrefix(msg[i+len(revertPrefix):], ":")
	return strings.TrimSpace(rest), true
}

func submitError(err error) *TxError {
	if reason, ok := revertReason(err); ok {
		return &TxError{Kind: FailureReverted, Reason: reason, Err: err}
	}
	return &TxError{Kind: FailureRejected, Reason: err.Error(), Err: err}
}
