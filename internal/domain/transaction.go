package domain

import (
	"time"
)

// TransactionType is the closed set of mobile-money transaction types
// in the PaySim dataset.
type TransactionType string

const (
	TypeCashIn   TransactionType = "CASH_IN"
	TypeCashOut  TransactionType = "CASH_OUT"
	TypeDebit    TransactionType = "DEBIT"
	TypePayment  TransactionType = "PAYMENT"
	TypeTransfer TransactionType = "TRANSFER"
)

// TransactionTypes lists every valid transaction type.
func TransactionTypes() []TransactionType {
	return []TransactionType{TypeCashIn, TypeCashOut, TypeDebit, TypePayment, TypeTransfer}
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeCashIn, TypeCashOut, TypeDebit, TypePayment, TypeTransfer:
		return true
	}
	return false
}

// HighValueThreshold is the amount above which a transaction is
// considered high value for classification and rule purposes.
const HighValueThreshold = 200000.0

// Transaction represents an ingested mobile-money transaction.
// Transactions are immutable once stored; alerts reference them by ID.
type Transaction struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Step is the ordinal time-step from the source dataset (1-744).
	Step int             `json:"step"`
	Type TransactionType `json:"type"`

	// Parties involved
	NameOrig string `json:"nameOrig"` // sender
	NameDest string `json:"nameDest"` // receiver

	Amount float64 `json:"amount"`

	// Balance snapshots from the provider feed. Known to be unreliable:
	// stored for audit only, never used as classifier input.
	OldBalanceOrig float64 `json:"oldBalanceOrig,omitempty"`
	NewBalanceOrig float64 `json:"newBalanceOrig,omitempty"`
	OldBalanceDest float64 `json:"oldBalanceDest,omitempty"`
	NewBalanceDest float64 `json:"newBalanceDest,omitempty"`

	// Labels
	IsFraud        bool `json:"isFraud"`        // ground truth from the dataset
	IsFlaggedFraud bool `json:"isFlaggedFraud"` // provider rule flag

	CreatedAt time.Time `json:"createdAt"`
}

// IsHighValue reports whether the amount exceeds the high-value threshold.
func (t *Transaction) IsHighValue() bool {
	return t.Amount > HighValueThreshold
}

// IsTransferType reports whether the transaction moves money out
// (TRANSFER or CASH_OUT), the types where fraud concentrates.
func (t *Transaction) IsTransferType() bool {
	return t.Type == TypeTransfer || t.Type == TypeCashOut
}

// TransactionRequest is the API request payload for transaction ingestion.
type TransactionRequest struct {
	Step           int     `json:"step"`
	Type           string  `json:"type"`
	Amount         float64 `json:"amount"`
	NameOrig       string  `json:"nameOrig"`
	NameDest       string  `json:"nameDest"`
	OldBalanceOrig float64 `json:"oldBalanceOrig,omitempty"`
	NewBalanceOrig float64 `json:"newBalanceOrig,omitempty"`
	OldBalanceDest float64 `json:"oldBalanceDest,omitempty"`
	NewBalanceDest float64 `json:"newBalanceDest,omitempty"`
	IsFraud        bool    `json:"isFraud,omitempty"`
	IsFlaggedFraud bool    `json:"isFlaggedFraud,omitempty"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction() *Transaction {
	return &Transaction{
		Step:           r.Step,
		Type:           TransactionType(r.Type),
		Amount:         r.Amount,
		NameOrig:       r.NameOrig,
		NameDest:       r.NameDest,
		OldBalanceOrig: r.OldBalanceOrig,
		NewBalanceOrig: r.NewBalanceOrig,
		OldBalanceDest: r.OldBalanceDest,
		NewBalanceDest: r.NewBalanceDest,
		IsFraud:        r.IsFraud,
		IsFlaggedFraud: r.IsFlaggedFraud,
		CreatedAt:      time.Now().UTC(),
	}
}

// TransactionSummary is the transaction view embedded in alert responses.
type TransactionSummary struct {
	ID       string          `json:"id"`
	Step     int             `json:"step"`
	Type     TransactionType `json:"type"`
	Amount   float64         `json:"amount"`
	NameOrig string          `json:"nameOrig"`
	NameDest string          `json:"nameDest"`
}

// Summary returns the embeddable view of the transaction.
func (t *Transaction) Summary() TransactionSummary {
	return TransactionSummary{
		ID:       t.ID,
		Step:     t.Step,
		Type:     t.Type,
		Amount:   t.Amount,
		NameOrig: t.NameOrig,
		NameDest: t.NameDest,
	}
}
