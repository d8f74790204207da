package domain

// RefundStatus represents the status of a refund record
type RefundStatus string

const (
	RefundStatusInProgress RefundStatus = "IN_PROGRESS"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
)

// IsValid checks if the refund status is valid
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusInProgress, RefundStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s RefundStatus) CanTransitionTo(newStatus RefundStatus) bool {
	switch s {
	case RefundStatusInProgress:
		return newStatus == RefundStatusCompleted
	case RefundStatusCompleted:
		return false // Terminal state
	default:
		return false
	}
}

// RefundMethod classifies how money is returned to the customer
type RefundMethod string

const (
	RefundMethodCash        RefundMethod = "cash"
	RefundMethodBankDeposit RefundMethod = "bank_deposit"
	RefundMethodWeb         RefundMethod = "web"
	RefundMethodUnknown     RefundMethod = "unknown"
)

// IsValid checks if the refund method is a known classification
func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundMethodCash, RefundMethodBankDeposit, RefundMethodWeb, RefundMethodUnknown:
		return true
	default:
		return false
	}
}
