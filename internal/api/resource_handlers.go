package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/audit"
	"github.com/routecore/platform/internal/authz"
	"github.com/routecore/platform/internal/balance"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/notify"
	"github.com/routecore/platform/internal/optimizer"
	"github.com/routecore/platform/internal/reqctx"
	"github.com/routecore/platform/internal/storage"
)

// ResourceHandler groups the illustrative authenticated routes (missions,
// vehicles, balance purchase, invite creation) that exercise C5/C6/C10
// together on top of the bound tenant transaction -- every call here
// assumes pipeline.Middleware has already run.
type ResourceHandler struct {
	optimizer *optimizer.Client
	audit     audit.Logger
	mailer    notify.EmailSender
}

func NewResourceHandler(opt *optimizer.Client, auditLogger audit.Logger, mailer notify.EmailSender) *ResourceHandler {
	if mailer == nil {
		mailer = notify.NoopMailer{}
	}
	return &ResourceHandler{optimizer: opt, audit: auditLogger, mailer: mailer}
}

type createMissionRequest struct {
	DriverID      string    `json:"driverId,omitempty"`
	VehicleID     string    `json:"vehicleId,omitempty"`
	Address       string    `json:"address"`
	ScheduledDate time.Time `json:"scheduledDate"`
}

// CreateMission illustrates C10's mission_create consumption path: the
// balance gate runs before the insert, inside the same request
// transaction, so a failed gate rolls back nothing because nothing was
// written yet.
func (h *ResourceHandler) CreateMission(w http.ResponseWriter, r *http.Request) {
	if err := authz.Require(r.Context(), []string{"mission:create"}, "", authz.NoSelfScope); err != nil {
		apperr.WriteError(w, err)
		return
	}

	var req createMissionRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequestf("%v", err))
		return
	}

	companyID, err := reqctx.RequireCompanyID(r.Context())
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	tx, err := reqctx.EnsureTx(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "missing bound transaction"))
		return
	}

	if err := balance.Consume(r.Context(), tx, companyID, domain.ActionMissionCreate); err != nil {
		apperr.WriteError(w, err)
		return
	}

	branchID := reqctx.GetEffectiveBranchID(r.Context(), "")
	m, err := storage.NewMissionRepo(tx).Create(r.Context(), domain.Mission{
		CompanyID:     companyID,
		BranchID:      branchID,
		DriverID:      req.DriverID,
		VehicleID:     req.VehicleID,
		Address:       req.Address,
		ScheduledDate: req.ScheduledDate,
	})
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "create mission"))
		return
	}

	respondJSON(w, http.StatusCreated, m)
}

func (h *ResourceHandler) ListMissions(w http.ResponseWriter, r *http.Request) {
	if err := authz.Require(r.Context(), []string{"mission:read"}, "", authz.NoSelfScope); err != nil {
		apperr.WriteError(w, err)
		return
	}
	tx, err := reqctx.EnsureTx(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "missing bound transaction"))
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			date = parsed
		}
	}

	missions, err := storage.NewMissionRepo(tx).ListByDate(r.Context(), date)
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "list missions"))
		return
	}
	respondJSON(w, http.StatusOK, missions)
}

type createVehicleRequest struct {
	Name  string `json:"name"`
	Plate string `json:"plate"`
}

// CreateVehicle illustrates C10's vehicle_create consumption path
// (per_vehicles_per_month, monthly rollover) alongside mission_create's
// simpler per_missions path.
func (h *ResourceHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	if err := authz.Require(r.Context(), []string{"vehicle:create"}, "", authz.NoSelfScope); err != nil {
		apperr.WriteError(w, err)
		return
	}

	var req createVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequestf("%v", err))
		return
	}

	companyID, err := reqctx.RequireCompanyID(r.Context())
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	tx, err := reqctx.EnsureTx(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "missing bound transaction"))
		return
	}

	if err := balance.Consume(r.Context(), tx, companyID, domain.ActionVehicleCreate); err != nil {
		apperr.WriteError(w, err)
		return
	}

	rc := reqctx.MustGet(r.Context())
	v, err := storage.NewVehicleRepo(tx).Create(r.Context(), companyID, rc.BranchID, req.Name, req.Plate)
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "create vehicle"))
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

func (h *ResourceHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	if err := authz.Require(r.Context(), []string{"vehicle:read"}, "", authz.ReadSelf); err != nil {
		apperr.WriteError(w, err)
		return
	}
	tx, err := reqctx.EnsureTx(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "missing bound transaction"))
		return
	}

	branchID := reqctx.GetEffectiveBranchID(r.Context(), r.URL.Query().Get("branchId"))
	vehicles, err := storage.NewVehicleRepo(tx).ListByBranch(r.Context(), branchID)
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "list vehicles"))
		return
	}
	respondJSON(w, http.StatusOK, vehicles)
}

type purchaseBalanceRequest struct {
	Type     domain.BalanceType `json:"type"`
	Quantity int64               `json:"quantity"`
}

// PurchaseBalance is C10's admin-only top-up/retype operation.
func (h *ResourceHandler) PurchaseBalance(w http.ResponseWriter, r *http.Request) {
	if err := authz.Require(r.Context(), []string{"balance:purchase"}, "", authz.NoSelfScope); err != nil {
		apperr.WriteError(w, err)
		return
	}

	var req purchaseBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequestf("%v", err))
		return
	}
	if req.Quantity <= 0 {
		apperr.WriteError(w, apperr.BadRequestf("quantity must be positive"))
		return
	}

	companyID, err := reqctx.RequireCompanyID(r.Context())
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	tx, err := reqctx.EnsureTx(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "missing bound transaction"))
		return
	}

	rc := reqctx.MustGet(r.Context())
	b, err := balance.Purchase(r.Context(), tx, companyID, req.Type, req.Quantity, rc.UserID)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}

	h.audit.Log(r.Context(), audit.EventBalancePurchase, companyID, rc.UserID, "", map[string]any{
		"type": req.Type, "quantity": req.Quantity,
	})
	respondJSON(w, http.StatusOK, b)
}

type createInviteRequest struct {
	DriverID     string `json:"driverId"`
	RoleID       string `json:"roleId,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

// CreateInvite issues a single-use registration code for a driver. Only
// one active invite per driver is allowed -- a second attempt while one
// is outstanding is a CONFLICT, not a silent replace.
func (h *ResourceHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	if err := authz.Require(r.Context(), []string{"invite:create"}, "", authz.NoSelfScope); err != nil {
		apperr.WriteError(w, err)
		return
	}

	var req createInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequestf("%v", err))
		return
	}
	if req.DriverID == "" {
		apperr.WriteError(w, apperr.BadRequestf("driverId is required"))
		return
	}

	companyID, err := reqctx.RequireCompanyID(r.Context())
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	tx, err := reqctx.EnsureTx(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "missing bound transaction"))
		return
	}

	invites := storage.NewInviteRepo(tx)
	active, err := invites.ExistsActiveForDriver(r.Context(), req.DriverID)
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "check active invite"))
		return
	}
	if active {
		apperr.WriteError(w, apperr.Conflictf("INVITE_ALREADY_ACTIVE", "driver already has an active invite"))
		return
	}

	rc := reqctx.MustGet(r.Context())
	expiresAt := time.Now().Add(7 * 24 * time.Hour)
	inv, err := invites.Create(r.Context(), domain.DriverInvite{
		Code:         generateInviteCode(),
		CompanyID:    companyID,
		BranchID:     rc.BranchID,
		DriverID:     req.DriverID,
		RoleID:       req.RoleID,
		ContactEmail: req.ContactEmail,
		ExpiresAt:    &expiresAt,
		CreatedByID:  rc.UserID,
	})
	if err != nil {
		apperr.WriteError(w, apperr.Internalf(err, "create invite"))
		return
	}

	// Best-effort: the invite is already valid and usable even if the
	// notification never arrives (D3).
	if inv.ContactEmail != "" {
		_ = h.mailer.SendInvite(r.Context(), inv.ContactEmail, inv.Code)
	}

	respondJSON(w, http.StatusCreated, inv)
}

// generateInviteCode produces a short, URL-safe single-use code. Not a
// secret in the bcrypt sense -- the invite row itself, not the code's
// entropy, is what makes registration single-use (MarkUsed's
// used_at IS NULL guard).
func generateInviteCode() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
