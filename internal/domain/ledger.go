package domain

// The functions in this file are the only writers of the order's derived
// fields. Services call them inside a transaction; nothing else sets
// Totals.Total, Totals.Subtotal, or PaymentStatus directly.

// LineTotal computes a line item's total from its frozen unit price and quantity.
func LineTotal(unitPrice int64, quantity int) int64 {
	return unitPrice * int64(quantity)
}

// SumLineTotals computes the order subtotal from the current set of lines.
func SumLineTotals(items []LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Total
	}
	return subtotal
}

// DerivePaymentStatus classifies the paid amount against the total.
// This is the single derivation rule for the order's payment status;
// failed/refunded are explicit markers applied by the payment ledger and
// are outside this function's range.
func DerivePaymentStatus(paid, total int64) PaymentStatus {
	switch {
	case paid <= 0:
		return PaymentStatusPending
	case paid < total:
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusPaid
	}
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:      {OrderStatusPending, OrderStatusCancelled},
	OrderStatusPending:    {OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusApproved:   {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

var cancellableStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusPending,
	OrderStatusApproved,
}

// CanTransition reports whether the status machine permits moving from one
// status to another. Delivered, cancelled, and rejected are terminal.
func CanTransition(from, to OrderStatus) bool {
	next, ok := orderStatusTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range next {
		if candidate == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether an order in the given status may still be
// cancelled. Once fulfilment starts (processing/shipped) the goods are
// committed and cancellation is disallowed.
func CanCancel(status OrderStatus) bool {
	for _, candidate := range cancellableStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions are permitted out of the status.
func IsTerminal(status OrderStatus) bool {
	_, ok := orderStatusTransitions[status]
	return !ok
}

// ValidOrderStatus reports whether the value is a known order status.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusDraft, OrderStatusPending, OrderStatusApproved,
		OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether the value is a known settlement channel.
func ValidPaymentMethod(method PaymentMethod) bool {
	switch method {
	case PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCash, PaymentMethodOnline:
		return true
	}
	return false
}
