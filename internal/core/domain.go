package core

import (
	"errors"
	"strings"
)

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"

	MethodDebit  PaymentMethod = "debit"
	MethodCredit PaymentMethod = "credit"

	KindIncome  RecurrentKind = "income"
	KindExpense RecurrentKind = "expense"

	BucketVariable Bucket = "variable"
	BucketFixed    Bucket = "fixed"

	EventBuy          EventType = "buy"
	EventSell         EventType = "sell"
	EventIncome       EventType = "income"
	EventContribution EventType = "contribution"
	EventWithdrawal   EventType = "withdrawal"
	EventMaturity     EventType = "maturity"

	FrequencyMonthly = "monthly"
)

type (
	TransactionType string
	PaymentMethod   string
	RecurrentKind   string
	Bucket          string
	EventType       string

	// Account holds cash in integer cents. BalanceCents is only ever
	// written through the ledger after creation.
	Account struct {
		ID             int64  `json:"id"`
		Bank           string `json:"bank,omitempty"`
		Label          string `json:"label"`
		BalanceCents   int64  `json:"balance_cents"`
		CardClosingDay int    `json:"card_closing_day,omitempty"`
		CardDueDay     int    `json:"card_due_day,omitempty"`
	}

	// Installment links a transaction to its purchase group.
	Installment struct {
		ParentID string `json:"parentId"`
		Total    int    `json:"total"`
		Index    int    `json:"index"`
		Product  string `json:"product"`
	}

	Transaction struct {
		ID                   string          `json:"id"`
		AccountID            int64           `json:"accountId"`
		DestinationAccountID int64           `json:"destinationAccountId,omitempty"`
		Date                 string          `json:"date"`
		Type                 TransactionType `json:"type"`
		PaymentMethod        PaymentMethod   `json:"payment_method,omitempty"`
		AmountCents          int64           `json:"amount_cents"`
		Description          string          `json:"description,omitempty"`
		Paid                 bool            `json:"paid"`
		Installment          *Installment    `json:"installment,omitempty"`
		RecurrentID          string          `json:"recurrentId,omitempty"`
		CreatedAt            string          `json:"createdAt,omitempty"`
	}

	Recurrent struct {
		ID            string        `json:"id"`
		AccountID     int64         `json:"accountId"`
		Kind          RecurrentKind `json:"kind"`
		PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
		Notify        bool          `json:"notify"`
		Name          string        `json:"name"`
		AmountCents   int64         `json:"amount_cents"`
		Frequency     string        `json:"frequency"`
		DayOfMonth    int           `json:"day_of_month,omitempty"`
		DueDay        int           `json:"due_day,omitempty"`
		Description   string        `json:"description,omitempty"`
		Active        bool          `json:"active"`
	}

	// BalanceSnapshot is one append-only history row per ledger mutation.
	BalanceSnapshot struct {
		ID           string `json:"id"`
		AccountID    int64  `json:"accountId"`
		Date         string `json:"date"`
		BalanceCents int64  `json:"balance_cents"`
		Note         string `json:"note,omitempty"`
	}

	// InvestmentPosition carries derived holdings for one asset. The
	// quantity/cost and principal/value fields are owned by the
	// recomputation engine and never taken from user input.
	InvestmentPosition struct {
		ID                string  `json:"id"`
		AccountID         int64   `json:"accountId"`
		Bucket            Bucket  `json:"bucket"`
		InvestmentType    string  `json:"investment_type,omitempty"`
		AssetCode         string  `json:"asset_code"`
		Name              string  `json:"name,omitempty"`
		Active            bool    `json:"is_active"`
		QuantityTotal     float64 `json:"quantity_total,omitempty"`
		AvgCostCents      int64   `json:"avg_cost_cents,omitempty"`
		InvestedCents     int64   `json:"invested_cents"`
		PrincipalCents    int64   `json:"principal_cents,omitempty"`
		CurrentValueCents int64   `json:"current_value_cents,omitempty"`
	}

	InvestmentEvent struct {
		ID             string    `json:"id"`
		PositionID     string    `json:"positionId"`
		AccountID      int64     `json:"accountId"`
		Date           string    `json:"date"`
		Type           EventType `json:"event_type"`
		AmountCents    int64     `json:"amount_cents"`
		Quantity       float64   `json:"quantity,omitempty"`
		UnitPriceCents int64     `json:"unit_price_cents,omitempty"`
		FeesCents      int64     `json:"fees_cents,omitempty"`
		Note           string    `json:"note,omitempty"`
		// Seq is assigned by the store on insert and breaks replay
		// ordering ties between events on the same date.
		Seq int64 `json:"seq,omitempty"`
	}

	// VariableHoldings is the replay result for quota-based positions.
	VariableHoldings struct {
		QuantityTotal float64
		AvgCostCents  int64
		InvestedCents int64
	}

	// FixedHoldings is the replay result for principal-based positions.
	FixedHoldings struct {
		PrincipalCents    int64
		CurrentValueCents int64
		InvestedCents     int64
	}

	// Holdings is a tagged variant keyed by Bucket: exactly one of
	// Variable or Fixed is set, matching the bucket.
	Holdings struct {
		Bucket   Bucket
		Variable *VariableHoldings
		Fixed    *FixedHoldings
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyLabel      = errors.New("empty label")
	ErrInvalidType     = errors.New("invalid type")
	ErrInvalidDay      = errors.New("invalid day of month")
	ErrMissingAccount  = errors.New("account is required")
	ErrMissingPosition = errors.New("position is required")
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case "", MethodDebit, MethodCredit:
		return true
	}
	return false
}

func (b Bucket) Valid() bool {
	return b == BucketVariable || b == BucketFixed
}

func (e EventType) Valid() bool {
	switch e {
	case EventBuy, EventSell, EventIncome, EventContribution, EventWithdrawal, EventMaturity:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Label) == "" {
		return ErrEmptyLabel
	}
	if a.CardClosingDay < 0 || a.CardClosingDay > 31 {
		return ErrInvalidDay
	}
	if a.CardDueDay < 0 || a.CardDueDay > 31 {
		return ErrInvalidDay
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.AccountID == 0 {
		return ErrMissingAccount
	}
	if !IsISODate(t.Date) {
		return ErrInvalidDate
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.PaymentMethod.Valid() {
		return ErrInvalidType
	}
	if t.AmountCents == 0 {
		return ErrInvalidAmount
	}
	if t.Installment != nil {
		if t.Installment.ParentID == "" || t.Installment.Total < 2 ||
			t.Installment.Index < 1 || t.Installment.Index > t.Installment.Total {
			return errors.New("invalid installment info")
		}
	}
	return nil
}

func (r Recurrent) Validate() error {
	if r.AccountID == 0 {
		return ErrMissingAccount
	}
	if r.Kind != KindIncome && r.Kind != KindExpense {
		return ErrInvalidType
	}
	if !r.PaymentMethod.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyLabel
	}
	if r.AmountCents == 0 {
		return ErrInvalidAmount
	}
	day := r.ReferenceDay()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	return nil
}

// ReferenceDay returns the day of month a recurrent falls due: due_day
// for expenses, day_of_month for income.
func (r Recurrent) ReferenceDay() int {
	if r.Kind == KindExpense {
		return r.DueDay
	}
	return r.DayOfMonth
}

func (p InvestmentPosition) Validate() error {
	if p.AccountID == 0 {
		return ErrMissingAccount
	}
	if !p.Bucket.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(p.AssetCode) == "" {
		return ErrEmptyLabel
	}
	return nil
}

func (e InvestmentEvent) Validate() error {
	if e.PositionID == "" {
		return ErrMissingPosition
	}
	if e.AccountID == 0 {
		return ErrMissingAccount
	}
	if !IsISODate(e.Date) {
		return ErrInvalidDate
	}
	if !e.Type.Valid() {
		return ErrInvalidType
	}
	if e.AmountCents < 0 || e.FeesCents < 0 || e.Quantity < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NewVariableHoldings builds the variable-bucket variant.
func NewVariableHoldings(quantity float64, avgCostCents, investedCents int64) Holdings {
	return Holdings{
		Bucket: BucketVariable,
		Variable: &VariableHoldings{
			QuantityTotal: quantity,
			AvgCostCents:  avgCostCents,
			InvestedCents: investedCents,
		},
	}
}

// NewFixedHoldings builds the fixed-bucket variant.
func NewFixedHoldings(principalCents, valueCents int64) Holdings {
	return Holdings{
		Bucket: BucketFixed,
		Fixed: &FixedHoldings{
			PrincipalCents:    principalCents,
			CurrentValueCents: valueCents,
			InvestedCents:     valueCents,
		},
	}
}

// ApplyTo writes the derived holdings onto a position record, clearing
// the fields that belong to the other bucket.
func (h Holdings) ApplyTo(p *InvestmentPosition) {
	switch h.Bucket {
	case BucketVariable:
		p.QuantityTotal = h.Variable.QuantityTotal
		p.AvgCostCents = h.Variable.AvgCostCents
		p.InvestedCents = h.Variable.InvestedCents
		p.PrincipalCents = 0
		p.CurrentValueCents = 0
	case BucketFixed:
		p.PrincipalCents = h.Fixed.PrincipalCents
		p.CurrentValueCents = h.Fixed.CurrentValueCents
		p.InvestedCents = h.Fixed.InvestedCents
		p.QuantityTotal = 0
		p.AvgCostCents = 0
	}
}
