package core

// Credit-card invoice cycle arithmetic. A purchase on or after the
// card's closing day bills on the next invoice; before it, on the
// current one. Day values are clamped into the month, never allowed to
// overflow into an adjacent month implicitly.

// CreditInvoiceCycleMonth returns the YYYY-MM invoice cycle a credit
// purchase belongs to. closingDay == 0 means the card has no closing
// day configured, in which case the cycle is the purchase month.
// ok=false for a malformed purchase date.
func CreditInvoiceCycleMonth(purchaseDate string, closingDay int) (month string, ok bool) {
	year, m, day, ok := ParseISODate(purchaseDate)
	if !ok {
		return "", false
	}
	if closingDay == 0 {
		return FormatMonth(year, m), true
	}

	effectiveClosing := ClampDay(year, m, closingDay)
	if day >= effectiveClosing {
		year, m = ShiftMonth(year, m, 1)
	}
	return FormatMonth(year, m), true
}

// CreditInvoiceDueDate returns the YYYY-MM-DD the invoice covering a
// credit purchase falls due. Without a closing day the due date is
// dueDay of the month after purchase. With one, the cycle month is
// resolved first; a dueDay greater than the closing day lands inside
// the cycle month itself, otherwise in the month after it. The due day
// is clamped to the target month's length. ok=false for a malformed
// purchase date.
func CreditInvoiceDueDate(purchaseDate string, dueDay, closingDay int) (date string, ok bool) {
	year, m, day, ok := ParseISODate(purchaseDate)
	if !ok {
		return "", false
	}

	if closingDay == 0 {
		year, m = ShiftMonth(year, m, 1)
		return FormatDate(year, m, dueDay), true
	}

	effectiveClosing := ClampDay(year, m, closingDay)
	if day >= effectiveClosing {
		year, m = ShiftMonth(year, m, 1)
	}
	if dueDay <= closingDay {
		year, m = ShiftMonth(year, m, 1)
	}
	return FormatDate(year, m, dueDay), true
}
