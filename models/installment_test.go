package models

import (
	"context"
	"testing"
)

// Installments and shares carry no condominium column, so the tenant guard
// plugin cannot scope them. Every entry point must reject a missing tenant
// before touching any row and resolve the owning plan under the tenant
// scope afterwards.
func TestInstallmentOperations_RequireTenant(t *testing.T) {
	ctx := context.Background()

	if _, err := GetInstallment(ctx, 1); err == nil || err.Error() != "condominium id is required" {
		t.Fatalf("GetInstallment without tenant = %v, want tenant guard error", err)
	}
	if _, err := IssueInstallment(ctx, 1); err == nil || err.Error() != "condominium id is required" {
		t.Fatalf("IssueInstallment without tenant = %v, want tenant guard error", err)
	}
	if _, err := DeleteInstallment(ctx, 1); err == nil || err.Error() != "condominium id is required" {
		t.Fatalf("DeleteInstallment without tenant = %v, want tenant guard error", err)
	}
	if _, err := RecordPayment(ctx, &NewPayment{ShareId: 1, Amount: 100}); err == nil || err.Error() != "condominium id is required" {
		t.Fatalf("RecordPayment without tenant = %v, want tenant guard error", err)
	}
}
