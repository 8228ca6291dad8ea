package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/smallbiznis/dataverse/internal/purchase"
	"go.uber.org/zap"
)

// TransferGas is the gas limit of a plain value transfer.
const TransferGas = 21000

// Provider is the EIP-1193 request surface; *rpc.Client satisfies it.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Dial connects to a JSON-RPC endpoint that exposes wallet methods.
func Dial(ctx context.Context, rawURL string) (*rpc.Client, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	return client, nil
}

// Session tracks the connected account of one wallet and its event subscriptions.
type Session struct {
	provider     Provider
	entitlements *purchase.EntitlementCache
	log          *zap.Logger

	mu      sync.RWMutex
	address string
	chainID string

	queue *eventQueue
}

// NewSession builds a session. A nil provider yields a session whose Connect fails with ErrWalletUnavailable.
// The session runs an event delivery goroutine until Close is called; callers must Close it.
func NewSession(provider Provider, entitlements *purchase.EntitlementCache, log *zap.Logger) *Session {
	s := &Session{
		provider:     provider,
		entitlements: entitlements,
		log:          log.Named("wallet.session"),
	}
	s.queue = newEventQueue(s.apply)
	return s
}

// Connect asks the wallet for account access.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", ErrWalletUnavailable
	}

	var accounts []string
	err := s.provider.CallContext(ctx, &accounts, "eth_requestAccounts")
	if errorCode(err) == codeMethodNotFound {
		err = s.provider.CallContext(ctx, &accounts, "eth_accounts")
	}
	if err != nil {
		if errorCode(err) == CodeUserRejected {
			return "", fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return "", fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	if len(accounts) == 0 {
		return "", ErrWalletUnavailable
	}

	address := s.setAddress(accounts[0])
	s.log.Info("wallet connected", zap.String("address", address))
	return address, nil
}

// Restore reconnects silently to an already authorized account. It returns "" when none is authorized.
func (s *Session) Restore(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", nil
	}
	var accounts []string
	if err := s.provider.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	if len(accounts) == 0 {
		return "", nil
	}
	return s.setAddress(accounts[0]), nil
}

func (s *Session) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

func (s *Session) ChainID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainID
}

func (s *Session) Connected() bool {
	return s.Address() != ""
}

// Entitlements is the session-scoped entitlement cache.
func (s *Session) Entitlements() *purchase.EntitlementCache {
	return s.entitlements
}

type transactionArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Gas   hexutil.Uint64 `json:"gas"`
}

// Pay submits a native-currency transfer and returns the transaction hash once broadcast.
// Inclusion is not awaited.
func (s *Session) Pay(ctx context.Context, to common.Address, wei *big.Int) (string, error) {
	from := s.Address()
	if from == "" {
		return "", ErrNotConnected
	}
	if s.provider == nil {
		return "", ErrWalletUnavailable
	}
	if wei == nil || wei.Sign() <= 0 {
		return "", &TransferError{Message: "transfer value must be positive"}
	}

	args := transactionArgs{
		From:  common.HexToAddress(from),
		To:    to,
		Value: (*hexutil.Big)(wei),
		Gas:   hexutil.Uint64(TransferGas),
	}

	var txHash string
	if err := s.provider.CallContext(ctx, &txHash, "eth_sendTransaction", args); err != nil {
		return "", classify(err)
	}
	if !isTxHash(txHash) {
		return "", &TransferError{Message: fmt.Sprintf("provider returned malformed transaction hash %q", txHash)}
	}

	s.log.Info("transfer broadcast",
		zap.String("to", to.Hex()),
		zap.String("value_wei", wei.String()),
		zap.String("tx_hash", txHash),
	)
	return strings.ToLower(txHash), nil
}

// Subscribe registers fn for wallet events. Events are delivered in order on one goroutine.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	return s.queue.subscribe(fn)
}

// Emit enqueues an event reported by the wallet.
func (s *Session) Emit(evt Event) {
	s.queue.push(evt)
}

// Close stops event delivery.
func (s *Session) Close() {
	s.queue.close()
}

func (s *Session) apply(evt Event) {
	switch evt.Kind {
	case AccountsChanged:
		next := ""
		if len(evt.Accounts) > 0 {
			next = normalizeAddress(evt.Accounts[0])
		}
		s.mu.Lock()
		prev := s.address
		s.address = next
		s.mu.Unlock()
		if prev != next {
			s.entitlements.Clear()
			s.log.Info("wallet account changed", zap.String("address", next))
		}
	case ChainChanged:
		s.mu.Lock()
		s.chainID = evt.ChainID
		s.mu.Unlock()
		s.log.Info("wallet chain changed", zap.String("chain_id", evt.ChainID))
	}
}

func (s *Session) setAddress(raw string) string {
	address := normalizeAddress(raw)
	s.mu.Lock()
	prev := s.address
	s.address = address
	s.mu.Unlock()
	if prev != "" && prev != address {
		s.entitlements.Clear()
	}
	return address
}

func normalizeAddress(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func isTxHash(v string) bool {
	b, err := hexutil.Decode(v)
	return err == nil && len(b) == common.HashLength
}

