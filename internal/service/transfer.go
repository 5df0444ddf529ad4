package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/punchamoorthee/transactflow/internal/events"
	"github.com/punchamoorthee/transactflow/internal/store"
)

// DefaultMaxAttempts bounds retries of a transfer that lost a compare-and-swap race.
const DefaultMaxAttempts = 3

const publishTimeout = 5 * time.Second

type TransferService struct {
	store       store.Transactor
	publisher   events.Publisher
	logger      *slog.Logger
	now         func() time.Time
	newRef      func() string
	maxAttempts int
}

type Option func(*TransferService)

func WithClock(now func() time.Time) Option {
	return func(s *TransferService) { s.now = now }
}

func WithReferenceGenerator(gen func() string) Option {
	return func(s *TransferService) { s.newRef = gen }
}

func WithMaxAttempts(n int) Option {
	return func(s *TransferService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewTransferService(st store.Transactor, pub events.Publisher, logger *slog.Logger, opts ...Option) *TransferService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	s := &TransferService{
		store:       st,
		publisher:   pub,
		logger:      logger,
		now:         time.Now,
		newRef:      domain.NewReferenceNumber,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer moves req.Amount from sender to the receiver. Both balance writes
// and the ledger record commit as one unit; on any error nothing is written.
func (s *TransferService) Transfer(ctx context.Context, sender string, req domain.TransferRequest) (*domain.TransferResult, error) {
	timer := prometheus.NewTimer(transferDuration)
	defer timer.ObserveDuration()

	res, err := s.transfer(ctx, sender, req)
	transfersTotal.WithLabelValues(outcome(res, err)).Inc()
	return res, err
}

func (s *TransferService) transfer(ctx context.Context, sender string, req domain.TransferRequest) (*domain.TransferResult, error) {
	req.ReceiverIdentity = strings.TrimSpace(req.ReceiverIdentity)
	if err := domain.ValidateTransfer(sender, req); err != nil {
		return nil, err
	}

	s.logger.Info("processing transfer", slog.String("sender", sender), slog.String("receiver", req.ReceiverIdentity))

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var res *domain.TransferResult
		var txn *domain.Transaction
		res, txn, err = s.attempt(ctx, sender, req)
		if err == nil {
			if txn != nil {
				s.publish(ctx, txn)
				s.logger.Info("transfer successful", slog.String("reference", txn.ReferenceNumber))
			}
			return res, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		transferRetries.Inc()
		s.logger.Warn("transfer conflict, retrying",
			slog.String("sender", sender), slog.Int("attempt", attempt), slog.Any("error", err))
	}
	return nil, fmt.Errorf("transfer aborted after %d attempts: %w", s.maxAttempts, err)
}

// attempt runs one unit of work. It returns the committed record, or nil when
// the result was replayed from an earlier request with the same idempotency key.
func (s *TransferService) attempt(ctx context.Context, sender string, req domain.TransferRequest) (*domain.TransferResult, *domain.Transaction, error) {
	amount := *req.Amount
	var (
		committed *domain.Transaction
		replayed  *domain.TransferResult
	)

	err := s.store.ExecTransfer(ctx, sender, req.ReceiverIdentity, func(uow store.UnitOfWork) error {
		if req.IdempotencyKey != "" {
			prior, err := uow.FindByClientKey(ctx, sender, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				if prior.RequestHash != req.RequestHash {
					return domain.ErrIdempotencyMismatch
				}
				replayed = domain.NewTransferResult(prior)
				replayed.Replayed = true
				return nil
			}
		}

		from, err := uow.Account(ctx, sender)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Errorf(domain.ErrAccountNotFound, "Sender not found")
		}
		if err != nil {
			return err
		}
		if !from.Active {
			return domain.Errorf(domain.ErrInactiveAccount, "Sender account is inactive")
		}

		to, err := uow.Account(ctx, req.ReceiverIdentity)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Errorf(domain.ErrAccountNotFound, "Receiver not found")
		}
		if err != nil {
			return err
		}
		if !to.Active {
			return domain.Errorf(domain.ErrInactiveAccount, "Receiver account is inactive")
		}

		if from.Balance.LessThan(amount) {
			return domain.Errorf(domain.ErrInsufficientBalance,
				"Insufficient balance. Sender balance is %s", from.Balance.StringFixed(2))
		}

		ref := s.newRef()
		exists, err := uow.ExistsByReference(ctx, ref)
		if err != nil {
			return err
		}
		if exists {
			return domain.Errorf(domain.ErrDuplicateTransaction, "Duplicate transaction detected")
		}

		now := s.now().UTC()
		txn := &domain.Transaction{
			ReferenceNumber:       ref,
			SenderIdentity:        sender,
			ReceiverIdentity:      req.ReceiverIdentity,
			Amount:                amount,
			Description:           req.Description,
			Status:                domain.StatusSuccess,
			SenderBalanceBefore:   from.Balance,
			SenderBalanceAfter:    from.Balance.Sub(amount),
			ReceiverBalanceBefore: to.Balance,
			ReceiverBalanceAfter:  to.Balance.Add(amount),
			ClientKey:             req.IdempotencyKey,
			RequestHash:           req.RequestHash,
			CreatedAt:             now,
		}

		from.Balance = txn.SenderBalanceAfter
		from.UpdatedAt = now
		to.Balance = txn.ReceiverBalanceAfter
		to.UpdatedAt = now

		if err := uow.SaveAccount(ctx, from); err != nil {
			return err
		}
		if err := uow.SaveAccount(ctx, to); err != nil {
			return err
		}
		if err := uow.Append(ctx, txn); err != nil {
			return err
		}
		committed = txn
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if replayed != nil {
		return replayed, nil, nil
	}
	return domain.NewTransferResult(committed), committed, nil
}

func (s *TransferService) publish(ctx context.Context, txn *domain.Transaction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishTransferCompleted(ctx, events.NewTransferCompleted(txn)); err != nil {
		eventPublishFailures.Inc()
		s.logger.Error("CRITICAL: transfer committed but event publish failed",
			slog.String("reference", txn.ReferenceNumber),
			slog.Any("error", err))
	}
}

func outcome(res *domain.TransferResult, err error) string {
	switch {
	case err == nil && res.Replayed:
		return "replayed"
	case err == nil:
		return "success"
	default:
		return domain.KindOf(err).String()
	}
}
