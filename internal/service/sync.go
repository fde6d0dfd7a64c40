package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/bank-sync/internal/ledger"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SyncResult describes one synchronization run of a user
type SyncResult struct {
	RunID    string        `json:"run_id"`
	UserID   int64         `json:"user_id"`
	Window   ledger.Window `json:"window"` // covers the windows of all accounts
	Accounts int           `json:"accounts"`
	Fetched  int           `json:"fetched"`
	Skipped  int           `json:"skipped"`
	Inserted int           `json:"inserted"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
}

func (r *SyncResult) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

// SyncUser imports new expenses of every account of a user since the account's
// latest stored expense (or the start of the current month for a fresh account).
func (s *Service) SyncUser(ctx context.Context, userID int64) (SyncResult, error) {
	return s.syncUser(ctx, userID, nil)
}

// BackfillPreviousMonth imports the whole previous calendar month of a user
func (s *Service) BackfillPreviousMonth(ctx context.Context, userID int64) (SyncResult, error) {
	window := ledger.PreviousMonthWindow(s.now())
	return s.syncUser(ctx, userID, &window)
}

// SyncAll synchronizes every user that has a credential with at most
// SYNC_WORKERS users in flight. A failing user never stops the others.
func (s *Service) SyncAll(ctx context.Context) ([]SyncResult, error) {
	users, err := s.store.ListUsersWithCredential(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SyncResult, len(users))
	g := &errgroup.Group{}
	g.SetLimit(s.config.SyncWorkers)
	for i, user := range users {
		g.Go(func() error {
			res, err := s.SyncUser(ctx, user.ID)
			res.UserID = user.ID
			if err != nil {
				res.fail(err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	s.log.WithFields(logrus.Fields{"users": len(users), "failed": failed}).Info("Sync of all users finished")
	return results, nil
}

func (s *Service) syncUser(ctx context.Context, userID int64, fixed *ledger.Window) (SyncResult, error) {
	res := SyncResult{RunID: uuid.NewString(), UserID: userID}
	log := s.log.WithFields(logrus.Fields{"run_id": res.RunID, "user_id": userID})

	if !s.acquire(userID) {
		log.Warn("Sync skipped: another run is active")
		res.fail(ErrSyncInProgress)
		return res, ErrSyncInProgress
	}
	defer s.release(userID)

	err := s.runSync(ctx, log, userID, fixed, &res)
	if err != nil {
		res.fail(err)
		log.WithFields(logrus.Fields{"inserted": res.Inserted}).Errorf("Sync failed: %v", err)
		return res, err
	}
	log.WithFields(logrus.Fields{
		"from":     res.Window.From,
		"to":       res.Window.To,
		"accounts": res.Accounts,
		"fetched":  res.Fetched,
		"skipped":  res.Skipped,
		"inserted": res.Inserted,
	}).Info("Sync finished")
	return res, nil
}

func (s *Service) runSync(ctx context.Context, log *logrus.Entry, userID int64, fixed *ledger.Window, res *SyncResult) error {
	user, credential, err := s.loadCredential(ctx, userID)
	if err != nil {
		return err
	}

	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		if _, err := s.reconcile(ctx, user, credential); err != nil {
			return err
		}
		if accounts, err = s.store.ListAccounts(ctx, userID); err != nil {
			return err
		}
	}

	// each account resolves its window from its own cursor
	windows := make([]ledger.Window, len(accounts))
	for i, acc := range accounts {
		w, err := s.accountWindow(ctx, userID, acc.AccountID, fixed)
		if err != nil {
			return err
		}
		windows[i] = w
		if i == 0 {
			res.Window = w
		} else {
			res.Window = cover(res.Window, w)
		}
	}
	if len(accounts) == 0 {
		if fixed != nil {
			res.Window = *fixed
		} else {
			res.Window = ledger.ResolveWindow(s.now(), 0, false)
		}
	}
	log.WithFields(logrus.Fields{"from": res.Window.From, "to": res.Window.To, "accounts": len(accounts)}).Debugf("Window resolved: %s", res.Window)

	// accounts are processed one by one; each one is committed before the next starts
	for i, acc := range accounts {
		if err := s.syncAccount(ctx, log, user, credential, acc, windows[i], res); err != nil {
			s.notifyRejected(user, err)
			return fmt.Errorf("failed to sync account %s: %w", acc.AccountID, err)
		}
		res.Accounts++
	}
	return nil
}

// accountWindow returns the fixed window when one is given, otherwise the
// incremental window derived from the account's latest stored expense
func (s *Service) accountWindow(ctx context.Context, userID int64, accountID string, fixed *ledger.Window) (ledger.Window, error) {
	if fixed != nil {
		return *fixed, nil
	}
	latest, ok, err := s.store.LatestExpenseTimestamp(ctx, userID, accountID)
	if err != nil {
		return ledger.Window{}, err
	}
	return ledger.ResolveWindow(s.now(), latest, ok), nil
}

// cover returns the smallest window containing both a and b
func cover(a, b ledger.Window) ledger.Window {
	if b.From < a.From {
		a.From = b.From
	}
	if b.To > a.To {
		a.To = b.To
	}
	return a
}

func (s *Service) syncAccount(ctx context.Context, log *logrus.Entry, user models.User, credential string, acc models.Account, window ledger.Window, res *SyncResult) error {
	log = log.WithField("account_id", acc.AccountID)
	chunks := window.Split(s.config.MaxWindow)
	log.WithField("chunks", len(chunks)).Debugf("Fetching %s", window)

	var txs []models.Transaction
	for _, chunk := range chunks {
		records, err := s.provider.Statement(ctx, credential, acc.AccountID, chunk.From, chunk.To)
		if err != nil {
			return err
		}
		res.Fetched += len(records)
		for _, raw := range records {
			tx, err := ledger.ParseRecord(raw)
			if err != nil {
				if !isValidation(err) {
					return err
				}
				res.Skipped++
				log.Warnf("Skipping record: %v", err)
				continue
			}
			txs = append(txs, tx)
		}
	}

	expenses := ledger.Normalize(txs, user, acc.AccountID, s.config.CashType)
	inserted, err := s.store.InsertExpenses(ctx, expenses)
	if err != nil {
		return err
	}
	res.Inserted += inserted
	log.WithFields(logrus.Fields{"transactions": len(txs), "expenses": len(expenses), "inserted": inserted}).Debug("Account synchronized")
	return nil
}
