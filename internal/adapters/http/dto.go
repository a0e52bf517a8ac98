package http

import "github.com/shopspring/decimal"

type createAccountRequest struct {
	OwnerID  string            `json:"ownerId" binding:"required"`
	Kind     string            `json:"kind" binding:"required"`
	Currency string            `json:"currency" binding:"required,len=3"`
	Metadata map[string]string `json:"metadata"`
}

type postingRequest struct {
	AccountID     string            `json:"accountId" binding:"required_without=AccountNumber"`
	AccountNumber string            `json:"accountNumber" binding:"required_without=AccountID"`
	Amount        decimal.Decimal   `json:"amount" binding:"required"`
	Metadata      map[string]string `json:"metadata"`
}

type transferRequest struct {
	FromAccountID     string            `json:"fromAccountId" binding:"required_without=FromAccountNumber"`
	FromAccountNumber string            `json:"fromAccountNumber" binding:"required_without=FromAccountID"`
	ToAccountID       string            `json:"toAccountId" binding:"required_without=ToAccountNumber"`
	ToAccountNumber   string            `json:"toAccountNumber" binding:"required_without=ToAccountID"`
	Amount            decimal.Decimal   `json:"amount" binding:"required"`
	Metadata          map[string]string `json:"metadata"`
}

type sweepRequest struct {
	OlderThanSeconds int `json:"olderThanSeconds" binding:"required,min=1"`
}

type reverseRequest struct {
	Reason string `json:"reason" binding:"required"`
}
