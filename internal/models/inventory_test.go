package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMovementApply(t *testing.T) {
	current := dec("10.000")

	after, err := MovementEntry.Apply(current, dec("5"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("15")))

	after, err = MovementReturn.Apply(current, dec("2.5"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("12.5")))

	after, err = MovementExit.Apply(current, dec("4"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("6")))

	after, err = MovementLoss.Apply(current, dec("10"))
	require.NoError(t, err)
	require.True(t, after.IsZero())

	after, err = MovementAdjustment.Apply(current, dec("3.250"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("3.25")))
}

func TestMovementApplyOverdraft(t *testing.T) {
	current := dec("3")

	_, err := MovementExit.Apply(current, dec("3.001"))
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = MovementLoss.Apply(current, dec("4"))
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = MovementTransfer.Apply(current, dec("-5"))
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestMovementApplyTransferSigned(t *testing.T) {
	after, err := MovementTransfer.Apply(dec("10"), dec("-4"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("6")))

	after, err = MovementTransfer.Apply(dec("10"), dec("4"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("14")))
}

func TestMovementApplyRejectsNegativeAdjustment(t *testing.T) {
	_, err := MovementAdjustment.Apply(dec("10"), dec("-1"))
	require.Error(t, err)
}

func TestMovementApplyUnknownType(t *testing.T) {
	_, err := MovementType("restock").Apply(dec("1"), dec("1"))
	require.Error(t, err)
}

func TestMovementTypeFromString(t *testing.T) {
	require.Equal(t, MovementEntry, MovementTypeFromString("entry"))
	require.Equal(t, MovementTransfer, MovementTypeFromString("transfer"))
	require.Equal(t, MovementType(""), MovementTypeFromString("restock"))
}

func TestPartMargin(t *testing.T) {
	part := &Part{CostPrice: dec("80.00"), SalePrice: dec("100.00")}
	require.True(t, part.Margin().Equal(dec("25.00")))

	part = &Part{CostPrice: dec("0"), SalePrice: dec("100.00")}
	require.True(t, part.Margin().IsZero())
}

func TestPartThresholds(t *testing.T) {
	part := &Part{Quantity: dec("5"), MinQuantity: dec("5")}
	require.True(t, part.BelowMinimum())
	require.False(t, part.Critical())

	part.Quantity = dec("2.5")
	require.True(t, part.Critical())

	part.Quantity = dec("6")
	require.False(t, part.BelowMinimum())
}

func TestRequisitionOpen(t *testing.T) {
	require.True(t, RequisitionPending.Open())
	require.True(t, RequisitionOrdered.Open())
	require.True(t, RequisitionAwaitingDelivery.Open())
	require.False(t, RequisitionReceived.Open())
	require.False(t, RequisitionCancelled.Open())
}
