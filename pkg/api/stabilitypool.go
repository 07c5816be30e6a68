package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/types"
)

// Server is the query surface this package serves over HTTP — the
// read-only half of modules.StabilityPoolServer (spec §6). Kept as its own
// interface so handlers can be tested against a stub without a full Engine.
type Server interface {
	AverageFeeRate(ctx context.Context, n int) (types.FeeRatePPB, error)
	ActiveDeposits(ctx context.Context, accountID types.AccountID) (modules.ActiveDeposits, error)
	ActiveProvides(ctx context.Context, accountID types.AccountID) (modules.ActiveProvides, error)
	LiquidityStats(ctx context.Context) (modules.LiquidityStats, error)
	UnlockRequestStatus(ctx context.Context, accountID types.AccountID) (modules.UnlockRequestStatus, error)
	AccountHistory(ctx context.Context, accountID types.AccountID, start uint64, limit int) ([]types.AccountHistoryItem, error)
	Audit(ctx context.Context) (modules.AuditResult, error)
}

// RegisterStabilityPoolRoutes wires the five §6 read endpoints (plus the
// provider-side and audit analogues the full server surface offers) onto
// router, grounded on the teacher's pkg/api/wallet.go route table: one GET
// route per query, path parameters for the account id, query-string
// parameters for everything else.
func RegisterStabilityPoolRoutes(router *httprouter.Router, server Server) {
	router.GET("/stabilitypool/average-fee-rate", averageFeeRateHandler(server))
	router.GET("/stabilitypool/active-deposits/:accountid", activeDepositsHandler(server))
	router.GET("/stabilitypool/active-provides/:accountid", activeProvidesHandler(server))
	router.GET("/stabilitypool/liquidity-stats", liquidityStatsHandler(server))
	router.GET("/stabilitypool/unlock-request-status/:accountid", unlockRequestStatusHandler(server))
	router.GET("/stabilitypool/history/:accountid", accountHistoryHandler(server))
	router.GET("/stabilitypool/audit", auditHandler(server))
}

func averageFeeRateHandler(server Server) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		n, err := strconv.Atoi(req.FormValue("n"))
		if err != nil || n <= 0 {
			WriteError(w, Error{Message: "missing or invalid 'n' query parameter"}, http.StatusBadRequest)
			return
		}
		rate, err := server.AverageFeeRate(req.Context(), n)
		if err != nil {
			WriteError(w, Error{Message: err.Error()}, http.StatusInternalServerError)
			return
		}
		WriteJSON(w, AverageFeeRateGET{FeeRatePPB: rate})
	}
}

func activeDepositsHandler(server Server) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		deposits, err := server.ActiveDeposits(req.Context(), types.AccountID(ps.ByName("accountid")))
		if err != nil {
			WriteError(w, Error{Message: err.Error()}, http.StatusInternalServerError)
			return
		}
		WriteJSON(w, deposits)
	}
}

func activeProvidesHandler(server Server) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		provides, err := server.ActiveProvides(req.Context(), types.AccountID(ps.ByName("accountid")))
		if err != nil {
			WriteError(w, Error{Message: err.Error()}, http.StatusInternalServerError)
			return
		}
		WriteJSON(w, provides)
	}
}

func liquidityStatsHandler(server Server) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		stats, err := server.LiquidityStats(req.Context())
		if err != nil {
			WriteError(w, Error{Message: err.Error()}, http.StatusInternalServerError)
			return
		}
		WriteJSON(w, stats)
	}
}

func unlockRequestStatusHandler(server Server) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		status, err := server.UnlockRequestStatus(req.Context(), types.AccountID(ps.ByName("accountid")))
		if err != nil {
			WriteError(w, Error{Message: err.Error()}, http.StatusInternalServerError)
			return
		}
		WriteJSON(w, status)
	}
}

func accountHistoryHandler(server Server) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		start, limit := uint64(0), 0
		if s := req.FormValue("start"); s != "" {
			v, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				WriteError(w, Error{Message: "invalid 'start' query parameter"}, http.StatusBadRequest)
				return
			}
			start = v
		}
		if l := req.FormValue("limit"); l != "" {
			v, err := strconv.Atoi(l)
			if err != nil || v < 0 {
				WriteError(w, Error{Message: "invalid 'limit' query parameter"}, http.StatusBadRequest)
				return
			}
			limit = v
		}
		items, err := server.AccountHistory(req.Context(), types.AccountID(ps.ByName("accountid")), start, limit)
		if err != nil {
			WriteError(w, Error{Message: err.Error()}, http.StatusInternalServerError)
			return
		}
		WriteJSON(w, AccountHistoryGET{Items: items})
	}
}

func auditHandler(server Server) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		result, err := server.Audit(req.Context())
		if err != nil {
			WriteError(w, Error{Message: err.Error()}, http.StatusInternalServerError)
			return
		}
		WriteJSON(w, result)
	}
}

// AverageFeeRateGET is the body of a GET /stabilitypool/average-fee-rate response.
type AverageFeeRateGET struct {
	FeeRatePPB types.FeeRatePPB `json:"feerateppb"`
}

// AccountHistoryGET is the body of a GET /stabilitypool/history/:accountid response.
type AccountHistoryGET struct {
	Items []types.AccountHistoryItem `json:"items"`
}
