package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainReader looks up transactions by hash; *ethclient.Client satisfies it.
type ChainReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// BroadcastedTransfer is a transfer the buyer's wallet already broadcast.
// Pay returns the known hash, checking it against the chain when a reader is set.
type BroadcastedTransfer struct {
	From    string
	TxHash  string
	Chain   ChainReader
	ChainID *big.Int
}

func (b *BroadcastedTransfer) Address() string {
	return normalizeAddress(b.From)
}

func (b *BroadcastedTransfer) Pay(ctx context.Context, to common.Address, wei *big.Int) (string, error) {
	if b.Address() == "" {
		return "", ErrNotConnected
	}
	if !isTxHash(b.TxHash) {
		return "", &TransferError{Message: fmt.Sprintf("malformed transaction hash %q", b.TxHash)}
	}
	hash := strings.ToLower(b.TxHash)
	if b.Chain == nil {
		return hash, nil
	}

	tx, _, err := b.Chain.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return "", &TransferError{Message: "transaction not found", Err: err}
		}
		return "", &TransferError{Message: "transaction lookup failed: " + err.Error(), Err: err}
	}
	if err := b.check(tx, to, wei); err != nil {
		return "", err
	}
	return hash, nil
}

func (b *BroadcastedTransfer) check(tx *types.Transaction, to common.Address, wei *big.Int) error {
	if tx.To() == nil || *tx.To() != to {
		return &TransferError{Message: "transaction does not pay the receiving address"}
	}
	if wei != nil && tx.Value().Cmp(wei) < 0 {
		return &TransferError{Message: fmt.Sprintf("transaction value %s is below price %s", tx.Value(), wei)}
	}
	if b.ChainID != nil {
		sender, err := types.Sender(types.LatestSignerForChainID(b.ChainID), tx)
		if err != nil {
			return &TransferError{Message: "transaction sender unrecoverable", Err: err}
		}
		if !strings.EqualFold(sender.Hex(), b.From) {
			return &TransferError{Message: "transaction was not sent by the buyer"}
		}
	}
	return nil
}

// ChainVerified reports whether Pay checks the transaction against a node.
func (b *BroadcastedTransfer) ChainVerified() bool {
	return b.Chain != nil
}
