package wallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// CodeUserRejected is the EIP-1193 code for a request the user declined.
	CodeUserRejected = 4001
	// codeMethodNotFound is the JSON-RPC code for an unsupported method.
	codeMethodNotFound = -32601
)

var (
	ErrWalletUnavailable = errors.New("wallet_unavailable")
	ErrUserRejected      = errors.New("user_rejected")
	ErrNotConnected      = errors.New("wallet_not_connected")
)

// TransferError carries the provider reason for a failed transfer.
type TransferError struct {
	Code    int
	Message string
	Err     error
}

func (e *TransferError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("transfer failed (code %d): %s", e.Code, e.Message)
	}
	return "transfer failed: " + e.Message
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func errorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}

// classify maps provider errors onto the session error set.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch code := errorCode(err); code {
	case CodeUserRejected:
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	default:
		return &TransferError{Code: code, Message: err.Error(), Err: err}
	}
}
