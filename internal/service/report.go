package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
)

const dateLayout = "2006-01-02"

// ResolvePeriod parses a YYYY-MM-DD period. Empty bounds default to the first
// day of the current month and today. The returned range is [from, to) in UTC
// with the end day included.
func ResolvePeriod(startDate, endDate string, now time.Time) (models.Period, time.Time, time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	if startDate != "" {
		parsed, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return models.Period{}, time.Time{}, time.Time{}, models.ErrInvalidDate
		}
		start = parsed
	}
	end := today
	if endDate != "" {
		parsed, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return models.Period{}, time.Time{}, time.Time{}, models.ErrInvalidDate
		}
		end = parsed
	}
	if end.Before(start) {
		return models.Period{}, time.Time{}, time.Time{}, models.ErrInvalidPeriod
	}

	period := models.Period{StartDate: start.Format(dateLayout), EndDate: end.Format(dateLayout)}
	return period, start, end.AddDate(0, 0, 1), nil
}

// Summarize computes income and expense of the user's account over a period.
// The starting balance is derived from the current balance and the net flow,
// so transfers after the period end shift it.
func (s *Service) Summarize(ctx context.Context, userID int64, startDate, endDate string) (*models.ReportSummary, error) {
	period, from, to, err := ResolvePeriod(startDate, endDate, s.now())
	if err != nil {
		return nil, err
	}

	account, err := s.store.GetAccountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	income, err := s.store.SumIncoming(ctx, account.ID, from, to)
	if err != nil {
		s.log.WithError(err).Errorf("Failed to aggregate income of account %d", account.ID)
		return nil, fmt.Errorf("%w: %v", models.ErrAggregationFailure, err)
	}
	expense, err := s.store.SumOutgoing(ctx, account.ID, from, to)
	if err != nil {
		s.log.WithError(err).Errorf("Failed to aggregate expense of account %d", account.ID)
		return nil, fmt.Errorf("%w: %v", models.ErrAggregationFailure, err)
	}

	netFlow := income.Sub(expense)
	return &models.ReportSummary{
		Period:          period,
		StartingBalance: account.Balance.Sub(netFlow),
		EndingBalance:   account.Balance,
		TotalIncome:     income,
		TotalExpense:    expense,
		NetFlow:         netFlow,
	}, nil
}
