package domain

import "testing"

func TestDerivePaymentStatus(t *testing.T) {
	cases := []struct {
		name  string
		paid  int64
		total int64
		want  PaymentStatus
	}{
		{name: "nothing paid", paid: 0, total: 20000, want: PaymentStatusPending},
		{name: "partial", paid: 12000, total: 20000, want: PaymentStatusPartiallyPaid},
		{name: "exact", paid: 20000, total: 20000, want: PaymentStatusPaid},
		{name: "over", paid: 25000, total: 20000, want: PaymentStatusPaid},
		{name: "zero total zero paid", paid: 0, total: 0, want: PaymentStatusPending},
		{name: "zero total paid", paid: 1, total: 0, want: PaymentStatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DerivePaymentStatus(tc.paid, tc.total); got != tc.want {
				t.Fatalf("DerivePaymentStatus(%d, %d) = %s, want %s", tc.paid, tc.total, got, tc.want)
			}
		})
	}
}

func TestSumLineTotals(t *testing.T) {
	items := []LineItem{
		{Quantity: 2, UnitPrice: 10000, Total: LineTotal(10000, 2)},
		{Quantity: 1, UnitPrice: 5000, Total: LineTotal(5000, 1)},
	}
	if got := SumLineTotals(items); got != 25000 {
		t.Fatalf("expected subtotal 25000 got %d", got)
	}
	if got := SumLineTotals(nil); got != 0 {
		t.Fatalf("expected empty subtotal 0 got %d", got)
	}
}

func TestCanTransitionForwardPath(t *testing.T) {
	path := []OrderStatus{
		OrderStatusDraft,
		OrderStatusPending,
		OrderStatusApproved,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
	// No skipping ahead.
	if CanTransition(OrderStatusDraft, OrderStatusApproved) {
		t.Fatal("draft -> approved must not be allowed")
	}
	if CanTransition(OrderStatusPending, OrderStatusShipped) {
		t.Fatal("pending -> shipped must not be allowed")
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []OrderStatus{
		OrderStatusDraft, OrderStatusPending, OrderStatusApproved,
		OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRejected,
	}
	for _, terminal := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled, OrderStatusRejected} {
		if !IsTerminal(terminal) {
			t.Fatalf("expected %s to be terminal", terminal)
		}
		for _, target := range all {
			if CanTransition(terminal, target) {
				t.Fatalf("terminal %s must not transition to %s", terminal, target)
			}
		}
	}
}

func TestCanCancel(t *testing.T) {
	cancellable := map[OrderStatus]bool{
		OrderStatusDraft:      true,
		OrderStatusPending:    true,
		OrderStatusApproved:   true,
		OrderStatusProcessing: false,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
		OrderStatusRejected:   false,
	}
	for status, want := range cancellable {
		if got := CanCancel(status); got != want {
			t.Fatalf("CanCancel(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestRemainingAmount(t *testing.T) {
	order := Order{Totals: OrderTotals{Subtotal: 25000, Discount: 5000, Total: 20000, Paid: 12000}}
	if got := order.RemainingAmount(); got != 8000 {
		t.Fatalf("expected remaining 8000 got %d", got)
	}
}
