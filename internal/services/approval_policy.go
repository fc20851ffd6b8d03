package services

import "context"

// ApprovalSettings carry the network's approval rules for submitted orders.
type ApprovalSettings struct {
	// RequireApproval switches the approval workflow on for the network.
	// When off, orders skip approval regardless of their total.
	RequireApproval bool
	// Threshold is the order total (minor units) at or above which an order
	// needs approval once the workflow is on. Zero means every order does.
	Threshold int64
}

type networkApprovalPolicy struct {
	settings ApprovalSettings
}

// NewNetworkApprovalPolicy builds an ApprovalPolicy from network settings.
// Absent settings default to requiring approval for everything; the safe
// choice when a network has not configured its rules yet.
func NewNetworkApprovalPolicy(settings *ApprovalSettings) ApprovalPolicy {
	if settings == nil {
		return networkApprovalPolicy{settings: ApprovalSettings{RequireApproval: true}}
	}
	return networkApprovalPolicy{settings: *settings}
}

func (p networkApprovalPolicy) RequiresApproval(_ context.Context, order Order) (bool, error) {
	if !p.settings.RequireApproval {
		return false, nil
	}
	return order.Totals.Total >= p.settings.Threshold, nil
}

func (p networkApprovalPolicy) Threshold() int64 {
	return p.settings.Threshold
}
