// Package chain abstracts the JSON-RPC surface of the chain: a failover
// client over multiple endpoints, the contract ABI registry, and the
// signing transaction sender.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Default retry tuning.
const (
	DefaultCallTimeout = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
)

// Backend is the subset of ethclient.Client the system uses. It exists so
// tests can substitute a stub endpoint.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// endpoint pairs a backend with its circuit breaker.
type endpoint struct {
	url     string
	backend Backend
	breaker *breaker
}

// Client multiplexes RPC calls over multiple endpoints with failover,
// per-endpoint circuit breaking, and retry with exponential backoff.
// All subsystems share one Client.
type Client struct {
	endpoints   []*endpoint
	callTimeout time.Duration
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	logger      *log.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithCallTimeout sets the per-attempt timeout.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.callTimeout = d }
}

// WithMaxRetries sets retry attempts per call.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Dial connects to every RPC URL. At least one endpoint must be reachable
// at startup; the rest join the rotation lazily.
func Dial(ctx context.Context, urls []string, opts ...ClientOption) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("no rpc urls configured")
	}

	c := &Client{
		callTimeout: DefaultCallTimeout,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, url := range urls {
		eth, err := ethclient.DialContext(ctx, url)
		if err != nil {
			c.logger.Printf("rpc endpoint %s unavailable at startup: %v", url, err)
			continue
		}
		c.endpoints = append(c.endpoints, &endpoint{
			url:     url,
			backend: eth,
			breaker: newBreaker(DefaultBreakerThreshold, DefaultBreakerCooldown),
		})
	}
	if len(c.endpoints) == 0 {
		return nil, fmt.Errorf("none of %d rpc endpoints reachable", len(urls))
	}
	return c, nil
}

// NewClientWithBackends builds a client over pre-built backends, used by
// tests and by callers that manage their own dialing.
func NewClientWithBackends(backends map[string]Backend, opts ...ClientOption) *Client {
	c := &Client{
		callTimeout: DefaultCallTimeout,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for url, b := range backends {
		c.endpoints = append(c.endpoints, &endpoint{
			url:     url,
			backend: b,
			breaker: newBreaker(DefaultBreakerThreshold, DefaultBreakerCooldown),
		})
	}
	return c
}

// do runs fn against the first healthy endpoint, failing over on error and
// retrying the rotation with backoff. Context cancellation aborts between
// attempts.
func (c *Client) do(ctx context.Context, op string, fn func(context.Context, Backend) error) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		for _, ep := range c.endpoints {
			if !ep.breaker.allow() {
				continue
			}

			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			err := fn(callCtx, ep.backend)
			cancel()

			if err == nil {
				ep.breaker.success()
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ep.breaker.failure()
			lastErr = err
			c.logger.Printf("rpc %s failed on %s: %v", op, ep.url, err)
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}
	}

	if lastErr == nil {
		lastErr = errors.New("all endpoints circuit-open")
	}
	return fmt.Errorf("rpc %s: %w", op, lastErr)
}

// BlockNumber returns the chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.do(ctx, "blockNumber", func(ctx context.Context, b Backend) error {
		var err error
		head, err = b.BlockNumber(ctx)
		return err
	})
	return head, err
}

// HeaderByNumber returns the header for a block, used for reorg checks
// and block timestamps.
func (c *Client) HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error) {
	var header *types.Header
	err := c.do(ctx, "headerByNumber", func(ctx context.Context, b Backend) error {
		var err error
		header, err = b.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	return header, err
}

// FilterLogs queries logs for one contract over a block range.
func (c *Client) FilterLogs(ctx context.Context, address common.Address, from, to uint64) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{address},
	}
	var logs []types.Log
	err := c.do(ctx, "filterLogs", func(ctx context.Context, b Backend) error {
		var err error
		logs, err = b.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

// CallContract executes a read-only call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	var out []byte
	err := c.do(ctx, "call", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.CallContract(ctx, msg, nil)
		return err
	})
	return out, err
}

// TransactionReceipt fetches a receipt, or ethereum.NotFound while pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "receipt", func(ctx context.Context, b Backend) error {
		var err error
		receipt, err = b.TransactionReceipt(ctx, txHash)
		return err
	})
	return receipt, err
}

// PendingNonceAt returns the next nonce for an account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "pendingNonce", func(ctx context.Context, b Backend) error {
		var err error
		nonce, err = b.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

// EstimateGas estimates gas for a call.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.do(ctx, "estimateGas", func(ctx context.Context, b Backend) error {
		var err error
		gas, err = b.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.do(ctx, "sendTransaction", func(ctx context.Context, b Backend) error {
		return b.SendTransaction(ctx, tx)
	})
}
