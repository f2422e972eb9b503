// Package domain holds the entities shared by every tenant-scoped table
// plus the handful of business-level constants that must be checked
// consistently across the codebase.
package domain

import "time"

// ReservedBranchName is the branch every company gets at creation. It
// cannot be renamed or deleted by anyone except a superadmin.
const ReservedBranchName = "main"

// ReservedAdminRoleName is the role every company gets at creation, with
// every known permission. Non-superadmins may neither create nor assume
// it.
const ReservedAdminRoleName = "companyAdmin"

// ReservedUsernames may never be registered, by a web user or a mobile
// user, in any company.
var ReservedUsernames = map[string]bool{
	"admin":        true,
	"root":         true,
	"superadmin":   true,
	"support":      true,
	"system":       true,
	"companyadmin": true,
}

// IsReservedUsername checks a trimmed, lowercased username against the
// static forbidden set.
func IsReservedUsername(username string) bool {
	return ReservedUsernames[username]
}

// Company is the root of a tenant. Immutable from the core's standpoint
// except for soft admin updates.
type Company struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Branch sub-groups a company. Every company has exactly one branch named
// ReservedBranchName, created alongside the company.
type Branch struct {
	ID        string
	Name      string
	CompanyID string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Role is a tenant-scoped role definition. Authorizations is an ordered
// sequence of permission strings, stored as written (duplicates are not
// removed).
type Role struct {
	ID             string
	Name           string
	Description    string
	Authorizations []string
	CompanyID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// WebUser is a browser-actor identity. Username is enforced globally
// unique in the current schema (see DESIGN.md open question (c)).
// IsSuperAdmin users may have an empty CompanyID.
type WebUser struct {
	ID           string
	Username     string
	PasswordHash string
	Email        string
	Phone        string
	Address      string
	ImageURL     string
	CompanyID    string
	BranchID     string
	RoleID       string
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// MobileUser is a mobile-app actor identity. Unique by (companyId,
// username).
type MobileUser struct {
	ID           string
	Username     string
	PasswordHash string
	Email        string
	Phone        string
	Address      string
	CompanyID    string
	BranchID     string
	RoleID       string
	DriverID     string
	Permissions  []string
	IsBlocked    bool
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// DefaultMobilePermissions is granted to a mobile user created through
// invite-code registration.
var DefaultMobilePermissions = []string{
	"mission:read:self",
	"mission:update:self",
	"vehicle:read",
}

// Driver is a company-scoped resource a mobile user may be bound to via a
// DriverInvite. Drivers and mobile users reference each other by id only
// -- never dereference the cycle eagerly.
type Driver struct {
	ID        string
	CompanyID string
	BranchID  string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Vehicle illustrates the consumption side of the balance gate (C10) and
// the branch-narrowing rule (C3.getEffectiveBranchId).
type Vehicle struct {
	ID        string
	CompanyID string
	BranchID  string
	Name      string
	Plate     string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// MissionStatus enumerates the lifecycle of a Mission.
type MissionStatus string

const (
	MissionPending   MissionStatus = "pending"
	MissionAssigned  MissionStatus = "assigned"
	MissionCompleted MissionStatus = "completed"
	MissionCancelled MissionStatus = "cancelled"
)

// Mission is a delivery stop. It illustrates the mission_create balance
// consumption path (C10) and the cross-tenant isolation properties (S1,
// S2) tested against the substrate.
type Mission struct {
	ID            string
	CompanyID     string
	BranchID      string
	DriverID      string
	VehicleID     string
	Address       string
	ScheduledDate time.Time
	Status        MissionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// RefreshToken is the server-side record backing an opaque refresh
// secret. Exactly one of UserID / MobileUserID is populated.
type RefreshToken struct {
	ID             string
	UserID         string
	MobileUserID   string
	TokenHash      string
	ExpiresAt      time.Time
	IsRevoked      bool
	FamilyID       string
	CreatedAt      time.Time
}

// DriverInvite is a single-use ticket binding a new mobile user to a
// specific driver/company/branch.
type DriverInvite struct {
	ID                 string
	Code               string
	CompanyID          string
	BranchID           string
	DriverID           string
	RoleID             string
	ContactEmail       string
	ExpiresAt          *time.Time
	UsedAt             *time.Time
	UsedByMobileUserID string
	CreatedByID        string
	CreatedAt          time.Time
}

// BalanceType is the consumption model a company's balance is metered
// under.
type BalanceType string

const (
	BalancePerMissions        BalanceType = "per_missions"
	BalancePerVehiclesPerMonth BalanceType = "per_vehicles_per_month"
)

// CompanyBalance is the at-most-one-row-per-company consumable quota.
type CompanyBalance struct {
	CompanyID    string
	Type         BalanceType
	Total        *int64
	Remaining    *int64
	MonthlyLimit *int64
	PeriodStart  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CompanyBalancePurchase is an append-only audit row of a balance
// mutation.
type CompanyBalancePurchase struct {
	ID                string
	CompanyID         string
	Type              BalanceType
	Quantity          int64
	CreatedByID       string
	TotalAfter        *int64
	RemainingAfter    *int64
	MonthlyLimitAfter *int64
	PeriodStartAfter  *time.Time
	CreatedAt         time.Time
}

// BalanceAction is the operation the gate is asked to authorize.
type BalanceAction string

const (
	ActionMissionCreate BalanceAction = "mission_create"
	ActionVehicleCreate BalanceAction = "vehicle_create"
)

// ActorType distinguishes the two variants of authenticated identity.
type ActorType string

const (
	ActorWeb    ActorType = "web"
	ActorMobile ActorType = "mobile"
)
