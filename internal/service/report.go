package service

import (
	"context"
	"sort"

	"github.com/Dan9191/bank-sync/internal/ledger"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/shopspring/decimal"
)

// CategorySummary sums a user's expenses per category over [from, to],
// largest category first.
func (s *Service) CategorySummary(ctx context.Context, userID, from, to int64) (models.CategorySummary, error) {
	summary := models.CategorySummary{From: from, To: to, Total: decimal.Zero, Categories: []models.CategoryTotal{}}
	if from > to {
		return summary, &ledger.ValidationError{Field: "from", Reason: "must not be after to"}
	}

	expenses, err := s.store.ExpensesInRange(ctx, userID, from, to)
	if err != nil {
		return summary, err
	}

	index := make(map[string]int)
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(summary.Categories)
			index[e.Category] = i
			summary.Categories = append(summary.Categories, models.CategoryTotal{Category: e.Category, Total: decimal.Zero})
		}
		summary.Categories[i].Total = summary.Categories[i].Total.Add(e.Amount)
		summary.Categories[i].Count++
		summary.Total = summary.Total.Add(e.Amount)
	}

	sort.SliceStable(summary.Categories, func(i, j int) bool {
		c := summary.Categories[i].Total.Cmp(summary.Categories[j].Total)
		if c != 0 {
			return c > 0
		}
		return summary.Categories[i].Category < summary.Categories[j].Category
	})
	return summary, nil
}

// PeriodSummary is CategorySummary over a named period (week, month, year)
func (s *Service) PeriodSummary(ctx context.Context, userID int64, period string) (models.CategorySummary, error) {
	w := ledger.PeriodWindow(period, s.now())
	return s.CategorySummary(ctx, userID, w.From, w.To)
}

// ListAccounts returns the reconciled accounts of a user
func (s *Service) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}
