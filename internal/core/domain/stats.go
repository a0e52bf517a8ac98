package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifies an account-stats entry relative to the account the
// stats were computed for: INCOMING if the account was credited, OUTGOING
// if it was debited.
type Direction string

const (
	Incoming Direction = "INCOMING"
	Outgoing Direction = "OUTGOING"
)

// CurrencyTotal is a count+total pair scoped to a single currency, the unit
// userStats' summary is reported in.
type CurrencyTotal struct {
	Currency Currency
	Count    int64
	Total    decimal.Decimal
}

// TypeBreakdown is a count+total scoped to one (kind, currency) pair, as
// userStats' byType groups.
type TypeBreakdown struct {
	Kind     Kind
	Currency Currency
	Count    int64
	Total    decimal.Decimal
}

// MonthlyTrendPoint is a count+total scoped to one (year, month, kind)
// bucket, as userStats' monthlyTrend groups.
type MonthlyTrendPoint struct {
	Year  int
	Month int
	Kind  Kind
	Count int64
	Total decimal.Decimal
}

// UserStats is the full userStats result: summary (per currency), byType
// (per kind and currency), and monthlyTrend (per year/month/kind).
type UserStats struct {
	Summary      []CurrencyTotal
	ByType       []TypeBreakdown
	MonthlyTrend []MonthlyTrendPoint
}

// NetFlow is ∑INCOMING − ∑OUTGOING for one currency over a window.
type NetFlow struct {
	Currency Currency
	Net      decimal.Decimal
}

// DirectionTypeBreakdown is a count+total scoped to one (direction, kind,
// currency) triple, as accountStats' byDirectionAndType groups.
type DirectionTypeBreakdown struct {
	Direction Direction
	Kind      Kind
	Currency  Currency
	Count     int64
	Total     decimal.Decimal
}

// DailyTrendPoint is a count+total scoped to one (day, direction, kind)
// bucket, as accountStats' dailyTrend groups.
type DailyTrendPoint struct {
	Day       time.Time
	Direction Direction
	Kind      Kind
	Count     int64
	Total     decimal.Decimal
}

// AccountStats is the full accountStats result: net flow per currency
// (∑INCOMING − ∑OUTGOING over COMPLETED transactions), byDirectionAndType,
// and dailyTrend.
type AccountStats struct {
	NetFlow            []NetFlow
	ByDirectionAndType []DirectionTypeBreakdown
	DailyTrend         []DailyTrendPoint
}
