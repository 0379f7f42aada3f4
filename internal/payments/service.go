package payments

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type enqueuer interface {
	Submit(job Job) bool
}

// Service defines payment operations.
type Service interface {
	SubmitPayment(ctx context.Context, input SubmitPaymentInput) (*models.Payment, error)
	Status(ctx context.Context, identity orders.Identity, orderID uuid.UUID) (*StatusView, error)
	GenerateAccountNumber(ctx context.Context) string
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	pool       enqueuer
	tx         txRunner
	logg       *logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService builds a payments service with the required dependencies.
func NewService(repo Repository, ordersRepo orders.Repository, pool enqueuer, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if pool == nil {
		return nil, fmt.Errorf("settlement pool required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		pool:       pool,
		tx:         tx,
		logg:       logg,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// SubmitPayment validates the instrument, records a pending payment, and
// hands it to the settlement pool. When the queue is saturated the payment is
// failed immediately instead of blocking the request.
func (s *service) SubmitPayment(ctx context.Context, input SubmitPaymentInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if !input.PaymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}
	if err := ValidateNumber(input.Number); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		order, err := ordersRepo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !orderOwnedBy(order, input.Identity) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		latest, err := repo.FindLatestPaymentByOrder(ctx, order.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest payment")
		}
		// Only an order that already left the payable states on a successful
		// payment is closed to further submissions. A pending payment may be
		// resubmitted; the settle-time guard keeps settlement idempotent.
		if !order.Status.IsPayable() && latest != nil && latest.Status == enums.PaymentStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
		}

		payment = &models.Payment{
			OrderID:      order.ID,
			PaymentType:  input.PaymentType,
			Number:       input.Number,
			HolderName:   input.HolderName,
			ExpiryMonth:  input.ExpiryMonth,
			ExpiryYear:   input.ExpiryYear,
			SecurityCode: input.SecurityCode,
			Status:       enums.PaymentStatusPending,
		}
		if _, err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithPaymentID(ctx, payment.ID.String())
	ctx = s.logg.WithOrderID(ctx, payment.OrderID.String())

	accepted := s.pool.Submit(Job{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		Number:    payment.Number,
	})
	if !accepted {
		s.logg.Warn(ctx, "settlement queue full, failing payment")
		msg := TechnicalErrorMessage
		now := time.Now().UTC()
		if _, err := s.repo.MarkSettled(ctx, payment.ID, enums.PaymentStatusFailed, &msg, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record rejected payment")
		}
		payment.Status = enums.PaymentStatusFailed
		payment.ErrorMessage = &msg
		payment.ProcessedAt = &now
		return payment, nil
	}

	s.logg.Info(ctx, "payment queued for settlement")
	return payment, nil
}

// Status reports the settlement state of the order's most recent payment.
func (s *service) Status(ctx context.Context, identity orders.Identity, orderID uuid.UUID) (*StatusView, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.ordersRepo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !orderOwnedBy(order, identity) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	latest, err := s.repo.FindLatestPaymentByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &StatusView{Status: StatusNoPayment}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest payment")
	}
	return &StatusView{
		Status:       latest.Status.String(),
		ErrorMessage: latest.ErrorMessage,
	}, nil
}

// GenerateAccountNumber returns a fresh account number that passes
// submission-time validation.
func (s *service) GenerateAccountNumber(ctx context.Context) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return GenerateAccountNumber(s.rng)
}

func orderOwnedBy(order *models.Order, identity orders.Identity) bool {
	if order.UserID != nil {
		return identity.UserID != nil && *identity.UserID == *order.UserID
	}
	if order.SessionID != nil {
		return identity.SessionID != nil && *identity.SessionID == *order.SessionID
	}
	return false
}
