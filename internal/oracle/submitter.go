package oracle

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitr-backend/internal/chain"
	"bitr-backend/internal/domain"
	"bitr-backend/internal/storage"
)

// Submitter pushes resolved outcomes to the guided oracle contract.
// Shared by the football and crypto resolvers so both benefit from the
// same dedupe and audit trail.
type Submitter struct {
	contracts   *chain.Contracts
	sender      *chain.TxSender
	submissions storage.SubmissionStore
	logs        storage.CryptoStore
	logger      *log.Logger
	now         func() time.Time
}

// SubmitterOptions collects the submitter's dependencies.
type SubmitterOptions struct {
	Contracts   *chain.Contracts
	Sender      *chain.TxSender
	Submissions storage.SubmissionStore
	Logs        storage.CryptoStore // resolution-log sink, shared table for both domains
	Logger      *log.Logger
}

func NewSubmitter(opts SubmitterOptions) (*Submitter, error) {
	if opts.Contracts == nil || opts.Sender == nil || opts.Submissions == nil || opts.Logs == nil {
		return nil, fmt.Errorf("oracle: contracts, sender and stores are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Submitter{
		contracts:   opts.Contracts,
		sender:      opts.Sender,
		submissions: opts.Submissions,
		logs:        opts.Logs,
		logger:      opts.Logger,
		now:         time.Now,
	}, nil
}

// Submit writes one outcome to the guided oracle unless it is already
// recorded. The submissions table answers "already submitted by us";
// the contract's getOutcome answers "already effective on chain" (set
// by an earlier run whose database write was lost, or by another
// operator). Either one short-circuits the transaction.
func (s *Submitter) Submit(ctx context.Context, marketID, outcome, resolverDomain string) error {
	exists, err := s.submissions.Exists(ctx, marketID)
	if err != nil {
		return fmt.Errorf("check submission %s: %w", marketID, err)
	}
	if exists {
		return nil
	}

	isSet, _, err := s.contracts.GetOutcome(ctx, marketID)
	if err != nil {
		return fmt.Errorf("read outcome %s: %w", marketID, err)
	}
	if isSet {
		s.logger.Printf("oracle: outcome for %s already on chain, recording without tx", marketID)
		return s.recordSubmission(ctx, marketID, outcome)
	}

	s.warnIfUnauthorized(ctx)

	if _, err := s.contracts.SubmitOutcome(ctx, s.sender, marketID, outcome); err != nil {
		s.audit(ctx, marketID, resolverDomain, outcome, false, err.Error())
		return fmt.Errorf("submit outcome %s: %w", marketID, err)
	}

	s.audit(ctx, marketID, resolverDomain, outcome, true, "")
	s.logger.Printf("oracle: submitted outcome %q for market %s", outcome, marketID)
	return s.recordSubmission(ctx, marketID, outcome)
}

func (s *Submitter) recordSubmission(ctx context.Context, marketID, outcome string) error {
	return s.submissions.Upsert(ctx, &domain.OracleSubmission{
		MarketID:    marketID,
		Outcome:     outcome,
		OracleType:  domain.OracleGuided,
		SubmittedAt: s.now().Unix(),
	})
}

// warnIfUnauthorized flags a wallet mismatch but never blocks: the
// contract reverts anyway and the retry loop picks the market up again
// once an administrator fixes the bot address.
func (s *Submitter) warnIfUnauthorized(ctx context.Context) {
	bot, err := s.contracts.OracleBot(ctx)
	if err != nil {
		s.logger.Printf("oracle: cannot read oracleBot: %v", err)
		return
	}
	if bot != s.sender.From() {
		s.logger.Printf("oracle: WARNING submitter wallet %s is not the configured oracle bot %s",
			s.sender.From().Hex(), bot.Hex())
	}
}

// audit appends one resolution-log row; failures to write the audit
// row are logged and swallowed so they never mask the submit result.
func (s *Submitter) audit(ctx context.Context, marketID, resolverDomain, outcome string, success bool, errText string) {
	row := &domain.ResolutionLog{
		MarketID:    marketID,
		Domain:      resolverDomain,
		Outcome:     outcome,
		Success:     success,
		ErrorText:   errText,
		AttemptedAt: s.now().Unix(),
	}
	if err := s.logs.InsertResolutionLog(ctx, row); err != nil {
		s.logger.Printf("oracle: write resolution log for %s: %v", marketID, err)
	}
}
