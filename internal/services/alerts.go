package services

import (
	"context"
	"fmt"
	"sort"

	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/store"
)

// Alert buckets, nearest first.
const (
	BucketOverdue  = "overdue"
	BucketToday    = "today"
	BucketUpcoming = "upcoming"
)

// Alert kinds.
const (
	AlertRecurrent      = "recurrent"
	AlertInvoiceDue     = "invoice_due"
	AlertInvoiceClosing = "invoice_closing"
)

// Alert is one actionable reminder for the user.
type Alert struct {
	Kind         string `json:"kind"`
	Bucket       string `json:"bucket"`
	Title        string `json:"title"`
	AccountID    int64  `json:"accountId"`
	AccountLabel string `json:"account_label"`
	TargetDate   string `json:"target_date"`
	DaysUntil    int    `json:"days_until"`
	AmountCents  int64  `json:"amount_cents"`
	RecurrentID  string `json:"recurrentId,omitempty"`
}

// Alerts evaluates pending recurrents and card invoice dates into
// bucketed reminders.
type Alerts struct {
	store       *store.Store
	recurrents  *Recurrents
	horizonDays int
	logger      *log.Logger
}

func NewAlerts(st *store.Store, recurrents *Recurrents, horizonDays int, logger *log.Logger) *Alerts {
	return &Alerts{
		store:       st,
		recurrents:  recurrents,
		horizonDays: horizonDays,
		logger:      logger.WithComponent(log.ComponentAlerts),
	}
}

func absCents(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func bucketFor(daysUntil int) string {
	switch {
	case daysUntil < 0:
		return BucketOverdue
	case daysUntil == 0:
		return BucketToday
	default:
		return BucketUpcoming
	}
}

// Evaluate builds the alert list for a given day (YYYY-MM-DD). Overdue
// items always show; upcoming items only within the horizon.
func (a *Alerts) Evaluate(ctx context.Context, today string) ([]Alert, error) {
	year, month, _, ok := core.ParseISODate(today)
	if !ok {
		return nil, fmt.Errorf("evaluate alerts: date %q: %w", today, core.ErrInvalidDate)
	}
	currentMonth := core.FormatMonth(year, month)

	accounts, err := a.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate alerts: %w", err)
	}
	accountsByID := make(map[int64]core.Account, len(accounts))
	for _, account := range accounts {
		accountsByID[account.ID] = account
	}

	var alerts []Alert

	recurrentAlerts, err := a.recurrentAlerts(ctx, today, year, month, currentMonth, accountsByID)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, recurrentAlerts...)

	invoiceAlerts, err := a.invoiceAlerts(ctx, today, currentMonth, accounts)
	if err != nil {
		return nil, err
	}
	alerts = append(alerts, invoiceAlerts...)

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].DaysUntil != alerts[j].DaysUntil {
			return alerts[i].DaysUntil < alerts[j].DaysUntil
		}
		if alerts[i].TargetDate != alerts[j].TargetDate {
			return alerts[i].TargetDate < alerts[j].TargetDate
		}
		if alerts[i].AccountLabel != alerts[j].AccountLabel {
			return alerts[i].AccountLabel < alerts[j].AccountLabel
		}
		return alerts[i].Title < alerts[j].Title
	})

	a.logger.InfoContext(ctx, "alerts evaluated",
		"date", today,
		log.FieldCount, len(alerts))
	return alerts, nil
}

// recurrentAlerts flags active notify recurrents without a paid
// transaction this month. Credit-method expense recurrents ride the
// invoice alerts instead.
func (a *Alerts) recurrentAlerts(ctx context.Context, today string, year, month int, currentMonth string, accountsByID map[int64]core.Account) ([]Alert, error) {
	active := true
	recurrents, err := a.store.ListRecurrents(ctx, store.RecurrentFilter{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("evaluate alerts: %w", err)
	}

	var out []Alert
	for _, r := range recurrents {
		if !r.Notify {
			continue
		}
		if r.Kind == core.KindExpense && r.PaymentMethod == core.MethodCredit {
			continue
		}
		resolved, err := a.recurrents.HasPaidRecurrentTransaction(ctx, r.ID, currentMonth)
		if err != nil {
			return nil, fmt.Errorf("evaluate alerts: %w", err)
		}
		if resolved {
			continue
		}

		target := core.FormatDate(year, month, r.ReferenceDay())
		days, ok := core.DaysUntil(today, target)
		if !ok || days > a.horizonDays {
			continue
		}
		account := accountsByID[r.AccountID]
		out = append(out, Alert{
			Kind:         AlertRecurrent,
			Bucket:       bucketFor(days),
			Title:        r.Name,
			AccountID:    r.AccountID,
			AccountLabel: account.Label,
			TargetDate:   target,
			DaysUntil:    days,
			AmountCents:  r.AmountCents,
			RecurrentID:  r.ID,
		})
	}
	return out, nil
}

// invoiceAlerts covers the card lifecycle: the due date of the invoice
// carrying unpaid credit lines (nearest overdue preferred, else nearest
// upcoming) and the approaching closing day with the open amount.
func (a *Alerts) invoiceAlerts(ctx context.Context, today, currentMonth string, accounts []core.Account) ([]Alert, error) {
	credit := core.MethodCredit
	unpaid := false
	lines, err := a.store.ListTransactions(ctx, store.TransactionFilter{PaymentMethod: &credit, Paid: &unpaid})
	if err != nil {
		return nil, fmt.Errorf("evaluate alerts: %w", err)
	}

	var out []Alert
	for _, account := range accounts {
		if account.CardDueDay == 0 {
			continue
		}

		// Sum unpaid lines per computed due date. Expense lines carry
		// negative amounts; alerts report the magnitude owed.
		totals := map[string]int64{}
		var openCurrentCycle int64
		for _, tx := range lines {
			if tx.AccountID != account.ID {
				continue
			}
			due, ok := core.CreditInvoiceDueDate(tx.Date, account.CardDueDay, account.CardClosingDay)
			if !ok {
				continue
			}
			totals[due] += absCents(tx.AmountCents)
			if cycle, ok := core.CreditInvoiceCycleMonth(tx.Date, account.CardClosingDay); ok && cycle == currentMonth {
				openCurrentCycle += absCents(tx.AmountCents)
			}
		}

		if due, days, ok := pickDueDate(today, totals); ok && days <= a.horizonDays {
			out = append(out, Alert{
				Kind:         AlertInvoiceDue,
				Bucket:       bucketFor(days),
				Title:        fmt.Sprintf("invoice due: %s", account.Label),
				AccountID:    account.ID,
				AccountLabel: account.Label,
				TargetDate:   due,
				DaysUntil:    days,
				AmountCents:  totals[due],
			})
		}

		if account.CardClosingDay > 0 && openCurrentCycle != 0 {
			year, month, _, _ := core.ParseISODate(today)
			closing := core.FormatDate(year, month, account.CardClosingDay)
			if days, ok := core.DaysUntil(today, closing); ok && days >= 0 && days <= a.horizonDays {
				out = append(out, Alert{
					Kind:         AlertInvoiceClosing,
					Bucket:       bucketFor(days),
					Title:        fmt.Sprintf("invoice closes: %s", account.Label),
					AccountID:    account.ID,
					AccountLabel: account.Label,
					TargetDate:   closing,
					DaysUntil:    days,
					AmountCents:  openCurrentCycle,
				})
			}
		}
	}
	return out, nil
}

// pickDueDate chooses the due date to surface: the nearest overdue one
// when any exists, otherwise the nearest upcoming one.
func pickDueDate(today string, totals map[string]int64) (string, int, bool) {
	var (
		bestOverdue, bestUpcoming         string
		bestOverdueDays, bestUpcomingDays int
		haveOverdue, haveUpcoming         bool
	)
	for due := range totals {
		days, ok := core.DaysUntil(today, due)
		if !ok {
			continue
		}
		if days < 0 {
			if !haveOverdue || days > bestOverdueDays {
				bestOverdue, bestOverdueDays, haveOverdue = due, days, true
			}
		} else {
			if !haveUpcoming || days < bestUpcomingDays {
				bestUpcoming, bestUpcomingDays, haveUpcoming = due, days, true
			}
		}
	}
	if haveOverdue {
		return bestOverdue, bestOverdueDays, true
	}
	if haveUpcoming {
		return bestUpcoming, bestUpcomingDays, true
	}
	return "", 0, false
}
