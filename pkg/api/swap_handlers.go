package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dexgate-hq/dexgate/pkg/dex"
	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

func poolTypeVar(r *http.Request) (dex.PoolType, error) {
	raw := mux.Vars(r)["poolType"]
	poolType, ok := dex.ParsePoolType(raw)
	if !ok {
		return "", gwerr.New(gwerr.Validation, "unknown pool type: %s, must be amm or clmm", raw)
	}
	return poolType, nil
}

// swapRequestFromQuery builds a SwapRequest from quote-swap query parameters.
func swapRequestFromQuery(r *http.Request) (models.SwapRequest, error) {
	q := r.URL.Query()
	req := models.SwapRequest{
		Network:       q.Get("network"),
		WalletAddress: q.Get("walletAddress"),
		BaseToken:     q.Get("baseToken"),
		QuoteToken:    q.Get("quoteToken"),
		Side:          models.Side(q.Get("side")),
		PoolAddress:   q.Get("poolAddress"),
	}

	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		return req, gwerr.New(gwerr.Validation, "invalid amount: %s", q.Get("amount"))
	}
	req.Amount = amount

	if raw := q.Get("slippagePct"); raw != "" {
		slippage, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, gwerr.New(gwerr.Validation, "invalid slippagePct: %s", raw)
		}
		req.SlippagePct = slippage
	}
	return req, nil
}

// handleQuoteSwap prices a swap and returns an executable quote id.
func (s *Server) handleQuoteSwap(w http.ResponseWriter, r *http.Request) {
	poolType, err := poolTypeVar(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, err := swapRequestFromQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.exec.QuoteSwap(r.Context(), poolType, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleExecuteSwap quotes and executes in one round trip, holding the
// connection until the transaction confirms or the polling budget lapses.
func (s *Server) handleExecuteSwap(w http.ResponseWriter, r *http.Request) {
	poolType, err := poolTypeVar(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req models.SwapRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.exec.ExecuteSwap(r.Context(), poolType, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleExecuteQuote redeems a previously issued quote id.
func (s *Server) handleExecuteQuote(w http.ResponseWriter, r *http.Request) {
	var req models.ExecuteQuoteRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.exec.ExecuteQuote(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleApprove grants a spender allowance outside of any swap.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req models.ApproveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.resolveNetwork(r, req.Network); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.exec.Approve(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleWrap wraps or unwraps native currency.
func (s *Server) handleWrap(w http.ResponseWriter, r *http.Request) {
	var req models.WrapRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.resolveNetwork(r, req.Network); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.exec.Wrap(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handlePoll reports a submitted transaction's current state in one round
// trip.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	signature := r.URL.Query().Get("signature")
	if _, err := s.resolveNetwork(r, network); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.exec.Poll(r.Context(), network, signature)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
