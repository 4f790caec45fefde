package entity

// Request status constants shared by TripRequest and AdministrativeRequest
const (
	StatusPendingDepartmentApproval = "PENDING_DEPARTMENT_APPROVAL"
	StatusPendingProjectApproval    = "PENDING_PROJECT_APPROVAL"
	StatusPendingFinanceApproval    = "PENDING_FINANCE_APPROVAL"
	StatusPendingAdminReview        = "PENDING_ADMIN_REVIEW"
	StatusApproved                  = "APPROVED"
	StatusRejected                  = "REJECTED"
	StatusPaid                      = "PAID"
	StatusCancelled                 = "CANCELLED"
)

// StepType identifies the approval role a workflow step stands for
type StepType string

const (
	StepDepartmentManager         StepType = "DEPARTMENT_MANAGER"
	StepSecondDepartmentManager   StepType = "SECOND_DEPARTMENT_MANAGER"
	StepTertiaryDepartmentManager StepType = "TERTIARY_DEPARTMENT_MANAGER"
	StepProjectManager            StepType = "PROJECT_MANAGER"
	StepSecondProjectManager      StepType = "SECOND_PROJECT_MANAGER"
	StepFinanceApproval           StepType = "FINANCE_APPROVAL"
	StepAdminReview               StepType = "ADMIN_REVIEW"
)

// StepStatus is the lifecycle of a single workflow step
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusRejected StepStatus = "REJECTED"
	StepStatusSkipped  StepStatus = "SKIPPED"
)

// Role is the capability an actor claims for a single call
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleFinance  Role = "finance"
	RoleAdmin    Role = "admin"
)

// OwnerKind identifies which budget owner a ledger operation targets
type OwnerKind string

const (
	OwnerDepartment OwnerKind = "department"
	OwnerProject    OwnerKind = "project"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TxInitial      TransactionType = "initial"
	TxAdjustment   TransactionType = "adjustment"
	TxAllocation   TransactionType = "allocation"
	TxDeallocation TransactionType = "deallocation"
)

// CostMethod says how a trip's cost was obtained
type CostMethod string

const (
	CostDirect      CostMethod = "direct"
	CostKilometers  CostMethod = "km"
	CostDestination CostMethod = "destination"
)

// RequestKind distinguishes the two request families in status history
type RequestKind string

const (
	RequestKindTrip  RequestKind = "trip"
	RequestKindAdmin RequestKind = "admin"
)

// AdminRequestKind is the subject category of an administrative request
type AdminRequestKind string

const (
	AdminKindGeneral        AdminRequestKind = "general"
	AdminKindCostAdjustment AdminRequestKind = "cost_adjustment"
	AdminKindBudgetIncrease AdminRequestKind = "budget_increase"
)

// Audit action tags
const (
	ActionTripCreated       = "TRIP_CREATED"
	ActionStepApproved      = "STEP_APPROVED"
	ActionStepRejected      = "STEP_REJECTED"
	ActionTripCancelled     = "TRIP_CANCELLED"
	ActionTripPaid          = "TRIP_PAID"
	ActionAdminCreated      = "ADMIN_REQUEST_CREATED"
	ActionAdminApproved     = "ADMIN_REQUEST_APPROVED"
	ActionAdminRejected     = "ADMIN_REQUEST_REJECTED"
	ActionAdminPaid         = "ADMIN_REQUEST_PAID"
	ActionBudgetReserved    = "BUDGET_RESERVED"
	ActionBudgetRestored    = "BUDGET_RESTORED"
	ActionBudgetAdjusted    = "BUDGET_ADJUSTED"
	ActionBonusGranted      = "MONTHLY_BONUS_GRANTED"
	ActionBonusReset        = "MONTHLY_BONUS_RESET"
	ActionProjectCreated    = "PROJECT_CREATED"
	ActionProjectActivated  = "PROJECT_ACTIVATED"
	ActionDepartmentCreated = "DEPARTMENT_CREATED"
	ActionRateCreated       = "KILOMETER_RATE_CREATED"
	ActionDelegationCreated = "DELEGATION_CREATED"
	ActionUserCreated       = "USER_CREATED"
)

// Audit entity types
const (
	EntityTripRequest  = "trip_request"
	EntityAdminRequest = "admin_request"
	EntityDepartment   = "department"
	EntityProject      = "project"
	EntityRate         = "kilometer_rate"
	EntityDelegation   = "delegation"
	EntityUser         = "user"
)
