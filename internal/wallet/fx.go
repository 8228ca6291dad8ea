package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/smallbiznis/dataverse/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("wallet",
	fx.Provide(NewVerifier),
)

// Verifier builds BroadcastedTransfers that are checked against the configured node.
type Verifier struct {
	chain   ChainReader
	chainID *big.Int
}

// NewVerifier dials ETH_RPC_URL when transfer verification is on. Without a URL transfers are trusted on broadcast.
func NewVerifier(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*Verifier, error) {
	v := &Verifier{chainID: big.NewInt(cfg.Chain.ChainID)}
	if !cfg.Chain.VerifyTransfers || cfg.Chain.RPCURL == "" {
		log.Warn("on-chain transfer verification disabled; broadcast hashes are trusted")
		return v, nil
	}

	client, err := ethclient.DialContext(context.Background(), cfg.Chain.RPCURL)
	if err != nil {
		return nil, err
	}
	v.chain = client
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			client.Close()
			return nil
		},
	})
	return v, nil
}

// NewStaticVerifier is a verifier around an existing chain reader.
func NewStaticVerifier(chain ChainReader, chainID *big.Int) *Verifier {
	return &Verifier{chain: chain, chainID: chainID}
}

// Transfer wraps a broadcast hash sent from the given buyer address.
func (v *Verifier) Transfer(from, txHash string) *BroadcastedTransfer {
	t := &BroadcastedTransfer{From: from, TxHash: txHash}
	if v != nil && v.chain != nil {
		t.Chain = v.chain
		t.ChainID = v.chainID
	}
	return t
}
