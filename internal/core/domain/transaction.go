package domain

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the debit/credit direction of an Entry.
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// Kind classifies a Transaction by the ledger primitive that produced it.
type Kind string

const (
	KindDeposit     Kind = "DEPOSIT"
	KindWithdrawal  Kind = "WITHDRAWAL"
	KindTransfer    Kind = "TRANSFER"
	KindPayment     Kind = "PAYMENT"
	KindFee         Kind = "FEE"
	KindInterest    Kind = "INTEREST"
	KindAdjustment  Kind = "ADJUSTMENT"
	KindReversal    Kind = "REVERSAL"
	KindRefund      Kind = "REFUND"
)

// transactionIDPrefix maps a Kind to the prefix minted into its
// transaction id (DEP/WDR/TRF/FEE/REV).
var transactionIDPrefix = map[Kind]string{
	KindDeposit:    "DEP",
	KindWithdrawal: "WDR",
	KindTransfer:   "TRF",
	KindPayment:    "TRF",
	KindFee:        "FEE",
	KindInterest:   "FEE",
	KindAdjustment: "FEE",
	KindReversal:   "REV",
	KindRefund:     "REV",
}

func (k Kind) IDPrefix() string {
	if p, ok := transactionIDPrefix[k]; ok {
		return p
	}
	return "TXN"
}

// TransactionIDPattern matches any minted transaction id: PREFIX-T-R where T
// is base-36 wall-clock millis and R is 8 hex chars, both upper-case.
var TransactionIDPattern = regexp.MustCompile(`^(DEP|WDR|TRF|FEE|REV|TXN)-[0-9A-Z]+-[0-9A-F]{8}$`)

// Status is a Transaction's position in the state machine described in the
// ledger's status diagram: PENDING -> PROCESSING -> COMPLETED|FAILED, and
// PENDING -> CANCELLED.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

var legalTransitions = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true},
}

// CanTransition reports whether moving from s to next is legal per the
// transaction status state machine.
func (s Status) CanTransition(next Status) bool {
	return legalTransitions[s][next]
}

// Entry is one leg of a balanced Transaction, affecting exactly one Account.
type Entry struct {
	AccountID string
	Side      Side
	Amount    decimal.Decimal
}

// Transaction is a balanced set of Entries recorded atomically.
type Transaction struct {
	ID             string
	Kind           Kind
	DeclaredAmount decimal.Decimal
	Currency       Currency
	Entries        []Entry
	Status         Status
	ReversalOfID   string // set on a REVERSAL transaction, empty otherwise
	ReversedByID   string // set on the original once reversed
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsBalanced checks invariant T2: entries sum to zero across sides.
func (t *Transaction) IsBalanced() bool {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, e := range t.Entries {
		switch e.Side {
		case Debit:
			debit = debit.Add(e.Amount)
		case Credit:
			credit = credit.Add(e.Amount)
		}
	}
	return debit.Equal(credit)
}

// AccountIDs returns the distinct accounts touched by this transaction.
func (t *Transaction) AccountIDs() []string {
	seen := make(map[string]bool, len(t.Entries))
	ids := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}
	return ids
}
