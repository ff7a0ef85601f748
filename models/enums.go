package models

type AccountKind string

const (
	AccountKindExpense AccountKind = "Expense"
	AccountKindIncome  AccountKind = "Income"
)

type SubjectRole string

const (
	SubjectRoleOwner        SubjectRole = "Owner"
	SubjectRoleTenant       SubjectRole = "Tenant"
	SubjectRoleUsufructuary SubjectRole = "Usufructuary"
)

type DistributionMethod string

const (
	DistributionMethodFrontLoaded  DistributionMethod = "FrontLoaded"
	DistributionMethodSpreadEvenly DistributionMethod = "SpreadEvenly"
)

type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "Open"
	PeriodStatusClosed PeriodStatus = "Closed"
)

type PlanStatus string

const (
	PlanStatusDraft  PlanStatus = "Draft"
	PlanStatusActive PlanStatus = "Active"
	PlanStatusClosed PlanStatus = "Closed"
)

type InstallmentStatus string

const (
	InstallmentStatusDraft  InstallmentStatus = "Draft"
	InstallmentStatusIssued InstallmentStatus = "Issued"
)

type ShareState string

const (
	ShareStatePayable ShareState = "Payable"
	ShareStateCredit  ShareState = "Credit"
)

type PriorBalanceOrigin string

const (
	PriorBalanceOriginCarryover PriorBalanceOrigin = "Carryover"
	PriorBalanceOriginImported  PriorBalanceOrigin = "Imported"
)

type CoverageStatus string

const (
	CoverageStatusDeficit CoverageStatus = "Deficit"
	CoverageStatusSurplus CoverageStatus = "Surplus"
	CoverageStatusOk      CoverageStatus = "Ok"
)

// Outbox publish lifecycle for plan events.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusPublished  = "PUBLISHED"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Plan event names consumed by external subscribers (UI badges, mailers).
const (
	PlanEventGenerated   = "plan.generated"
	PlanEventIssued      = "plan.issued"
	PlanEventBudgetMoved = "budget.moved"
)
