package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/Dan9191/bank-sync/internal/integrations/monobank"
	"github.com/Dan9191/bank-sync/internal/ledger"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/Dan9191/bank-sync/internal/utils"
	"github.com/Dan9191/bank-sync/internal/worker"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoCredential is returned when a user has no provider credential stored
	ErrNoCredential = errors.New("user has no provider credential")
	// ErrSyncInProgress is returned when a run for the same user is already active
	ErrSyncInProgress = errors.New("sync already in progress for user")
	// ErrNoQueue is returned by Enqueue when background jobs are disabled
	ErrNoQueue = errors.New("background jobs are disabled")
)

// Store is the persistence the service depends on
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (models.User, error)
	ListUsersWithCredential(ctx context.Context) ([]models.User, error)
	SetCredential(ctx context.Context, userID int64, encrypted string) error
	LatestExpenseTimestamp(ctx context.Context, userID int64, accountID string) (int64, bool, error)
	InsertExpenses(ctx context.Context, expenses []models.Expense) (int, error)
	UpsertAccounts(ctx context.Context, userID int64, accounts []models.Account) (int, error)
	ListAccounts(ctx context.Context, userID int64) ([]models.Account, error)
	ExpensesInRange(ctx context.Context, userID, from, to int64) ([]models.Expense, error)
}

// Provider is the bank API
type Provider interface {
	Statement(ctx context.Context, credential, accountID string, from, to int64) ([]json.RawMessage, error)
	ClientInfo(ctx context.Context, credential string) (models.ClientInfo, error)
}

// Notifier tells users about problems with their credential
type Notifier interface {
	SendCredentialRejected(user models.User, status int) error
}

// Queue accepts background jobs
type Queue interface {
	Submit(job worker.Job) error
}

// Operation names a job that can be run in the background for a user
type Operation string

// Background operations
const (
	OpSync      Operation = "sync"
	OpBackfill  Operation = "backfill"
	OpReconcile Operation = "reconcile"
	OpOnboard   Operation = "onboard"
)

// Service handles business logic
type Service struct {
	store    Store
	provider Provider
	notifier Notifier
	queue    Queue
	log      *logrus.Logger
	config   *config.Config
	key      []byte
	now      func() time.Time

	mu      sync.Mutex
	running map[int64]struct{}
}

// Option configures a Service
type Option func(*Service)

// WithQueue enables background jobs
func WithQueue(q Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithNotifier sets the credential rejection notifier
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService initializes a new service
func NewService(store Store, provider Provider, log *logrus.Logger, cfg *config.Config, opts ...Option) (*Service, error) {
	key, err := utils.DeriveKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive credential key: %w", err)
	}
	s := &Service{
		store:    store,
		provider: provider,
		log:      log,
		config:   cfg,
		key:      key,
		now:      time.Now,
		running:  make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateUser registers a user whose statements will be synchronized
func (s *Service) CreateUser(ctx context.Context, username, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &ledger.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		HomeCurrency: s.config.HomeCurrency,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Infof("User created: %d", user.ID)
	return user, nil
}

// SetCredential encrypts and stores the provider token of a user. A credential
// can only be set once. When background jobs are enabled an onboarding job
// (account reconciliation and previous month backfill) is queued, otherwise the
// accounts are reconciled before returning.
func (s *Service) SetCredential(ctx context.Context, userID int64, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return &ledger.ValidationError{Field: "credential", Reason: "must not be empty"}
	}

	sealed, err := utils.Encrypt(credential, s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	if err := s.store.SetCredential(ctx, userID, sealed); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("Credential stored")

	if s.queue == nil {
		if _, err := s.ReconcileAccounts(ctx, userID); err != nil {
			// the first sync reconciles again
			s.log.WithField("user_id", userID).Warnf("Accounts not reconciled: %v", err)
		}
		return nil
	}
	if err := s.Enqueue(OpOnboard, userID); err != nil {
		// the scheduled runs pick the user up later
		s.log.WithField("user_id", userID).Warnf("Onboarding not queued: %v", err)
	}
	return nil
}

// Onboard reconciles accounts and imports the previous calendar month
func (s *Service) Onboard(ctx context.Context, userID int64) error {
	if _, err := s.ReconcileAccounts(ctx, userID); err != nil {
		return err
	}
	if _, err := s.BackfillPreviousMonth(ctx, userID); err != nil {
		return err
	}
	return nil
}

// Enqueue schedules op for userID on the background queue
func (s *Service) Enqueue(op Operation, userID int64) error {
	if s.queue == nil {
		return ErrNoQueue
	}
	var run func(ctx context.Context) error
	switch op {
	case OpSync:
		run = func(ctx context.Context) error {
			_, err := s.SyncUser(ctx, userID)
			return err
		}
	case OpBackfill:
		run = func(ctx context.Context) error {
			_, err := s.BackfillPreviousMonth(ctx, userID)
			return err
		}
	case OpReconcile:
		run = func(ctx context.Context) error {
			_, err := s.ReconcileAccounts(ctx, userID)
			return err
		}
	case OpOnboard:
		run = func(ctx context.Context) error {
			return s.Onboard(ctx, userID)
		}
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	return s.queue.Submit(worker.Job{Name: fmt.Sprintf("%s-%d", op, userID), Run: run})
}

// loadCredential returns the user and the decrypted provider token
func (s *Service) loadCredential(ctx context.Context, userID int64) (models.User, string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, "", err
	}
	if !user.HasCredential() {
		return user, "", ErrNoCredential
	}
	credential, err := utils.Decrypt(user.Credential, s.key)
	if err != nil {
		return user, "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return user, credential, nil
}

// notifyRejected emails the user when the provider refused their credential
func (s *Service) notifyRejected(user models.User, err error) {
	var perr *monobank.ProviderError
	if s.notifier == nil || !errors.As(err, &perr) || !perr.Unauthorized() {
		return
	}
	if nerr := s.notifier.SendCredentialRejected(user, perr.Status); nerr != nil {
		s.log.WithField("user_id", user.ID).Errorf("Failed to notify about rejected credential: %v", nerr)
	}
}

func (s *Service) acquire(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[userID]; ok {
		return false
	}
	s.running[userID] = struct{}{}
	return true
}

func (s *Service) release(userID int64) {
	s.mu.Lock()
	delete(s.running, userID)
	s.mu.Unlock()
}
