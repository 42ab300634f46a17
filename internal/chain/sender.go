package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrTxFailed is returned when a mined transaction reverted.
var ErrTxFailed = errors.New("chain: transaction reverted")

const (
	gasBufferPercent = 10
	defaultGasPrice  = 20_000_000_000 // 20 gwei, fixed for the target chain
	receiptPollEvery = 2 * time.Second
	receiptWaitMax   = 2 * time.Minute
)

// TxSender signs and submits transactions from a single hot key. All
// oracle and reputation writes go through one sender per key so the
// in-memory nonce tracker is the only writer for that account.
type TxSender struct {
	client  *Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	logger  *log.Logger

	mu        sync.Mutex
	nextNonce uint64
	nonceInit bool
}

// NewTxSender parses a hex private key and binds it to one chain id.
func NewTxSender(client *Client, hexKey string, chainID int64, logger *log.Logger) (*TxSender, error) {
	if logger == nil {
		logger = log.Default()
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &TxSender{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
		logger:  logger,
	}, nil
}

// From returns the sender account address.
func (s *TxSender) From() common.Address { return s.from }

// reserveNonce hands out the next nonce, seeding from the pending pool
// on first use. Callers that fail before broadcast must give it back.
func (s *TxSender) reserveNonce(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.nonceInit {
		pending, err := s.client.PendingNonceAt(ctx, s.from)
		if err != nil {
			return 0, fmt.Errorf("fetch pending nonce: %w", err)
		}
		s.nextNonce = pending
		s.nonceInit = true
	}
	n := s.nextNonce
	s.nextNonce++
	return n, nil
}

func (s *TxSender) releaseNonce(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonceInit && s.nextNonce == n+1 {
		s.nextNonce = n
	}
}

// resetNonce drops the cached tracker so the next send re-reads the
// pending pool. Used after a nonce-gap error.
func (s *TxSender) resetNonce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonceInit = false
}

// Send estimates gas, signs a legacy transaction and broadcasts it,
// then blocks until one confirmation. Returns the mined receipt.
func (s *TxSender) Send(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasBufferPercent / 100

	nonce, err := s.reserveNonce(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: big.NewInt(defaultGasPrice),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		s.releaseNonce(nonce)
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		if strings.Contains(err.Error(), "nonce") {
			s.resetNonce()
		} else {
			s.releaseNonce(nonce)
		}
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}

	s.logger.Printf("chain: sent tx %s nonce=%d gas=%d to=%s",
		signed.Hash().Hex(), nonce, gas, to.Hex())

	return s.waitMined(ctx, signed.Hash())
}

// waitMined polls for the receipt until one confirmation or timeout.
func (s *TxSender) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, receiptWaitMax)
	defer cancel()

	ticker := time.NewTicker(receiptPollEvery)
	defer ticker.Stop()
	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx %s", ErrTxFailed, hash.Hex())
			}
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for tx %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
