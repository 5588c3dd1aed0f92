package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusReceived, StatusDiagnosis))
	require.True(t, CanTransition(StatusDiagnosis, StatusWaitingApproval))
	require.True(t, CanTransition(StatusWaitingApproval, StatusApproved))
	require.True(t, CanTransition(StatusWaitingApproval, StatusDiagnosis))
	require.True(t, CanTransition(StatusApproved, StatusInProgress))
	require.True(t, CanTransition(StatusInProgress, StatusAwaitingPart))
	require.True(t, CanTransition(StatusAwaitingPart, StatusInProgress))
	require.True(t, CanTransition(StatusInProgress, StatusReady))
	require.True(t, CanTransition(StatusReady, StatusDelivered))
	require.True(t, CanTransition(StatusDelivered, StatusReady))

	require.False(t, CanTransition(StatusReceived, StatusApproved))
	require.False(t, CanTransition(StatusReceived, StatusDelivered))
	require.False(t, CanTransition(StatusDelivered, StatusInProgress))
	require.False(t, CanTransition(StatusCanceled, StatusReceived))
	require.False(t, CanTransition(StatusReady, StatusCanceled))
}

func TestCanTransitionCancelable(t *testing.T) {
	for _, from := range []OrderStatus{
		StatusReceived, StatusDiagnosis, StatusWaitingApproval,
		StatusApproved, StatusInProgress, StatusAwaitingPart,
	} {
		require.True(t, CanTransition(from, StatusCanceled), "expected %s to be cancelable", from)
	}
}

func TestIsTerminalStatus(t *testing.T) {
	require.False(t, IsTerminalStatus(StatusDelivered))
	require.True(t, IsTerminalStatus(StatusCanceled))
	require.False(t, IsTerminalStatus(StatusReady))
}

func TestStatusFromString(t *testing.T) {
	require.Equal(t, StatusInProgress, StatusFromString("in_progress"))
	require.Equal(t, OrderStatus(""), StatusFromString("painting"))
}

func TestComputeTotals(t *testing.T) {
	items := []ServiceItem{
		{Category: CategoryLabor, Quantity: dec("2"), UnitPrice: dec("50.00")},
		{Category: CategoryPart, Quantity: dec("1"), UnitPrice: dec("50.00")},
		{Category: CategoryThirdParty, Quantity: dec("1"), UnitPrice: dec("25.00")},
	}

	totals, err := ComputeTotals(items, dec("10.00"))
	require.NoError(t, err)
	require.True(t, totals.Labor.Equal(dec("100.00")), "labor = %s", totals.Labor)
	require.True(t, totals.Parts.Equal(dec("50.00")), "parts = %s", totals.Parts)
	require.True(t, totals.ThirdParty.Equal(dec("25.00")), "third party = %s", totals.ThirdParty)
	require.True(t, totals.Total.Equal(dec("165.00")), "total = %s", totals.Total)
}

func TestComputeTotalsFractionalQuantity(t *testing.T) {
	items := []ServiceItem{
		{Category: CategoryLabor, Quantity: dec("1.5"), UnitPrice: dec("80.00")},
		{Category: CategoryPart, Quantity: dec("0.250"), UnitPrice: dec("39.90")},
	}

	totals, err := ComputeTotals(items, decimal.Zero)
	require.NoError(t, err)
	require.True(t, totals.Labor.Equal(dec("120.00")))
	require.True(t, totals.Parts.Equal(dec("9.98")), "parts = %s", totals.Parts)
	require.True(t, totals.Total.Equal(dec("129.98")))
}

func TestComputeTotalsDiscountValidation(t *testing.T) {
	items := []ServiceItem{
		{Category: CategoryLabor, Quantity: dec("1"), UnitPrice: dec("100.00")},
	}

	_, err := ComputeTotals(items, dec("-5.00"))
	require.Error(t, err)

	_, err = ComputeTotals(items, dec("150.00"))
	require.ErrorIs(t, err, ErrDiscountExceedsTotal)

	totals, err := ComputeTotals(items, dec("100.00"))
	require.NoError(t, err)
	require.True(t, totals.Total.IsZero())
}

func TestReferenceTotalPrecedence(t *testing.T) {
	order := &ServiceOrder{Total: dec("165.00")}
	require.True(t, order.ReferenceTotal().Equal(dec("165.00")))

	est := dec("180.00")
	order.EstimateTotal = &est
	require.True(t, order.ReferenceTotal().Equal(dec("180.00")))

	appr := dec("170.00")
	order.ApprovalTotal = &appr
	require.True(t, order.ReferenceTotal().Equal(dec("170.00")))
}

func TestBalanceNeverNegative(t *testing.T) {
	order := &ServiceOrder{
		Total: dec("100.00"),
		Payments: []Payment{
			{Amount: dec("60.00"), Status: PaymentConfirmed},
			{Amount: dec("60.00"), Status: PaymentConfirmed},
		},
	}
	require.True(t, order.TotalPaid().Equal(dec("120.00")))
	require.True(t, order.Balance().IsZero())
}

func TestBalanceIgnoresCancelledPayments(t *testing.T) {
	order := &ServiceOrder{
		Total: dec("100.00"),
		Payments: []Payment{
			{Amount: dec("40.00"), Status: PaymentConfirmed},
			{Amount: dec("40.00"), Status: PaymentCancelled},
		},
	}
	require.True(t, order.TotalPaid().Equal(dec("40.00")))
	require.True(t, order.Balance().Equal(dec("60.00")))
}

func TestDepositSatisfied(t *testing.T) {
	order := &ServiceOrder{
		Total: dec("200.00"),
		Payments: []Payment{
			{Amount: dec("99.99"), Status: PaymentConfirmed},
		},
	}
	require.True(t, order.MinimumDeposit(dec("0.5")).Equal(dec("100.00")))
	require.False(t, order.DepositSatisfied(dec("0.5")))

	order.Payments = append(order.Payments, Payment{Amount: dec("0.01"), Status: PaymentConfirmed})
	require.True(t, order.DepositSatisfied(dec("0.5")))
}

func TestDepositSatisfiedZeroRatio(t *testing.T) {
	order := &ServiceOrder{Total: dec("200.00")}
	require.True(t, order.DepositSatisfied(decimal.Zero))
}

func TestPublicTokenValidity(t *testing.T) {
	now := time.Now()
	token := "3f7c1c2e0a9b4d55b1d2e3f4a5b6c7d8"
	created := now.Add(-24 * time.Hour)
	expires := now.Add(48 * time.Hour)

	order := &ServiceOrder{
		Status:               StatusWaitingApproval,
		PublicToken:          &token,
		PublicTokenCreatedAt: &created,
		PublicTokenExpiresAt: &expires,
	}
	require.True(t, order.PublicTokenValid(now))
	require.False(t, order.PublicTokenExpired(now))

	past := now.Add(-time.Minute)
	order.PublicTokenExpiresAt = &past
	require.True(t, order.PublicTokenExpired(now))
	require.False(t, order.PublicTokenValid(now))

	order.PublicTokenExpiresAt = &expires
	order.PublicTokenRevoked = true
	require.False(t, order.PublicTokenValid(now))

	order.PublicTokenRevoked = false
	order.Status = StatusApproved
	require.False(t, order.PublicTokenValid(now))
}

func TestServiceItemTotal(t *testing.T) {
	item := &ServiceItem{Quantity: dec("3"), UnitPrice: dec("33.33")}
	require.True(t, item.Total().Equal(dec("99.99")))

	item = &ServiceItem{Quantity: dec("0.333"), UnitPrice: dec("10.00")}
	require.True(t, item.Total().Equal(dec("3.33")))
}
