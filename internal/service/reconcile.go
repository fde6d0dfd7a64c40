package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/sirupsen/logrus"
)

// ReconcileReport summarizes a reconciliation pass over all users
type ReconcileReport struct {
	Users    int `json:"users"`
	Accounts int `json:"accounts"`
	Failed   int `json:"failed"`
}

// ReconcileAccounts replaces the stored accounts of a user with the provider's current view
func (s *Service) ReconcileAccounts(ctx context.Context, userID int64) (int, error) {
	user, credential, err := s.loadCredential(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.reconcile(ctx, user, credential)
}

// ReconcileAll reconciles every user with a credential. Failures are logged and counted.
func (s *Service) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	users, err := s.store.ListUsersWithCredential(ctx)
	if err != nil {
		return ReconcileReport{}, err
	}

	var report ReconcileReport
	for _, user := range users {
		report.Users++
		n, err := s.ReconcileAccounts(ctx, user.ID)
		if err != nil {
			report.Failed++
			s.log.WithField("user_id", user.ID).Errorf("Reconciliation failed: %v", err)
			continue
		}
		report.Accounts += n
	}
	s.log.WithFields(logrus.Fields{
		"users":    report.Users,
		"accounts": report.Accounts,
		"failed":   report.Failed,
	}).Info("Reconciliation of all users finished")
	return report, nil
}

func (s *Service) reconcile(ctx context.Context, user models.User, credential string) (int, error) {
	info, err := s.provider.ClientInfo(ctx, credential)
	if err != nil {
		s.notifyRejected(user, err)
		return 0, fmt.Errorf("failed to fetch client info: %w", err)
	}

	updatedAt := s.now().Unix()
	accounts := make([]models.Account, 0, len(info.Accounts))
	for _, pa := range info.Accounts {
		accounts = append(accounts, toAccount(user.ID, pa, updatedAt))
	}

	n, err := s.store.UpsertAccounts(ctx, user.ID, accounts)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "accounts": n}).Info("Accounts reconciled")
	return n, nil
}

// toAccount maps a provider account. Balances arrive in minor units.
func toAccount(userID int64, pa models.ProviderAccount, updatedAt int64) models.Account {
	acc := models.Account{
		UserID:       userID,
		AccountID:    pa.ID,
		IBAN:         pa.IBAN,
		CurrencyCode: pa.CurrencyCode,
		Balance:      float64(pa.Balance) / 100,
		UpdatedAt:    updatedAt,
	}
	if len(pa.MaskedPan) > 0 {
		acc.MaskedPan = pa.MaskedPan[0]
	}
	return acc
}
