package reports

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeWaterfall_CreditPoolConsumedInDueDateOrder(t *testing.T) {
	positions := []InstallmentPosition{
		{InstallmentId: 1, Sequence: 1, DueDate: day(1), Net: -500},
		{InstallmentId: 2, Sequence: 2, DueDate: day(2), Net: 1200},
		{InstallmentId: 3, Sequence: 3, DueDate: day(3), Net: 800},
	}

	result := ComputeWaterfall(1, positions)
	if result.CreditPool != 500 {
		t.Fatalf("credit pool = %d, want 500", result.CreditPool)
	}

	rows := result.Rows
	if rows[0].Residual != -500 || rows[0].CreditApplied != 0 {
		t.Fatalf("credit installment must pass through untouched: %+v", rows[0])
	}
	if rows[1].Residual != 700 || rows[1].CoveredByCredit {
		t.Fatalf("second installment: residual %d covered %v, want 700 not covered", rows[1].Residual, rows[1].CoveredByCredit)
	}
	if rows[1].CreditApplied != 500 {
		t.Fatalf("second installment consumed %d credit, want 500", rows[1].CreditApplied)
	}
	if rows[2].Residual != 800 || rows[2].CreditApplied != 0 {
		t.Fatalf("third installment: pool must be exhausted, got %+v", rows[2])
	}
	if result.CreditRemaining != 0 {
		t.Fatalf("credit remaining = %d, want 0", result.CreditRemaining)
	}
}

func TestComputeWaterfall_FullCoverageMarksInstallment(t *testing.T) {
	positions := []InstallmentPosition{
		{InstallmentId: 1, DueDate: day(1), Net: -1000},
		{InstallmentId: 2, DueDate: day(2), Net: 400},
		{InstallmentId: 3, DueDate: day(3), Net: 400},
	}

	result := ComputeWaterfall(1, positions)
	if !result.Rows[1].CoveredByCredit || result.Rows[1].Residual != 0 {
		t.Fatalf("second installment should be fully covered: %+v", result.Rows[1])
	}
	if !result.Rows[2].CoveredByCredit || result.Rows[2].Residual != 0 {
		t.Fatalf("third installment should be fully covered: %+v", result.Rows[2])
	}
	if result.CreditRemaining != 200 {
		t.Fatalf("credit remaining = %d, want 200", result.CreditRemaining)
	}
}

func TestComputeWaterfall_PaidAmountReducesOwed(t *testing.T) {
	positions := []InstallmentPosition{
		{InstallmentId: 1, DueDate: day(1), Net: 1000, Paid: 600},
	}

	result := ComputeWaterfall(1, positions)
	if result.Rows[0].Residual != 400 {
		t.Fatalf("residual = %d, want 400", result.Rows[0].Residual)
	}
}

func TestComputeWaterfall_OverpaidInstallmentOwesNothing(t *testing.T) {
	positions := []InstallmentPosition{
		{InstallmentId: 1, DueDate: day(1), Net: 1000, Paid: 1500},
		{InstallmentId: 2, DueDate: day(2), Net: 500},
	}

	result := ComputeWaterfall(1, positions)
	if result.Rows[0].Residual != 0 {
		t.Fatalf("overpaid installment residual = %d, want 0", result.Rows[0].Residual)
	}
	// settled by payment, not by the pool: the flag must stay off
	if result.Rows[0].CoveredByCredit || result.Rows[0].CreditApplied != 0 {
		t.Fatalf("paid-off installment must not be reported as credit covered: %+v", result.Rows[0])
	}
	if result.Rows[1].Residual != 500 {
		t.Fatalf("second installment residual = %d, want 500", result.Rows[1].Residual)
	}
}

func TestComputeWaterfall_TieOnDueDateBreaksByInstallmentId(t *testing.T) {
	positions := []InstallmentPosition{
		{InstallmentId: 9, DueDate: day(1), Net: 300},
		{InstallmentId: 2, DueDate: day(1), Net: 300},
		{InstallmentId: 5, DueDate: day(1), Net: -300},
	}

	result := ComputeWaterfall(1, positions)
	if result.Rows[0].InstallmentId != 2 || result.Rows[1].InstallmentId != 5 || result.Rows[2].InstallmentId != 9 {
		t.Fatalf("rows not ordered by installment id on equal due dates: %+v", result.Rows)
	}
	// the 300 credit lands on installment 2, the earliest debt
	if !result.Rows[0].CoveredByCredit {
		t.Fatalf("installment 2 should absorb the credit first: %+v", result.Rows[0])
	}
	if result.Rows[2].Residual != 300 {
		t.Fatalf("installment 9 residual = %d, want 300", result.Rows[2].Residual)
	}
}

func TestComputeWaterfall_Idempotent(t *testing.T) {
	positions := []InstallmentPosition{
		{InstallmentId: 1, DueDate: day(1), Net: -500},
		{InstallmentId: 2, DueDate: day(2), Net: 1200, Paid: 200},
		{InstallmentId: 3, DueDate: day(3), Net: 800},
	}

	first := ComputeWaterfall(1, positions)
	second := ComputeWaterfall(1, positions)
	for i := range first.Rows {
		if first.Rows[i] != second.Rows[i] {
			t.Fatalf("row %d differs across runs: %+v vs %+v", i, first.Rows[i], second.Rows[i])
		}
	}
	if first.TotalResidual != second.TotalResidual {
		t.Fatalf("total residual differs: %d vs %d", first.TotalResidual, second.TotalResidual)
	}
}
