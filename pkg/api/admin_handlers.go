package api

import (
	"fmt"
	"net/http"

	"github.com/dexgate-hq/dexgate/pkg/chainclient"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports 503 until every configured network has a connected
// client.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	for name, net := range s.exec.Networks() {
		connected := net.Evm != nil || net.Svm != nil
		if !connected {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("Network %s client not connected", name)))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

// handleStatus snapshots every network: family, signing wallet, configured
// tokens, and circuit breaker state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]interface{})

	for name, net := range s.exec.Networks() {
		wallet := ""
		if net.IsAccountNonce() {
			if net.EvmSigner != nil {
				wallet = net.EvmSigner.Address().Hex()
			}
		} else if net.SvmSigner != nil {
			wallet = chainclient.Base58Encode(net.SvmSigner.PublicKey())
		}

		networkStatus := map[string]interface{}{
			"family":    net.Config.Family,
			"rpc_url":   net.Config.RPCURL,
			"wallet":    wallet,
			"connected": net.Evm != nil || net.Svm != nil,
			"tokens":    s.exec.Tokens().Symbols(name),
		}
		if net.Breaker != nil {
			networkStatus["circuit"] = net.Breaker.GetState()
		}

		status[name] = networkStatus
	}

	s.writeJSON(w, http.StatusOK, status)
}

// handleCircuitReset closes the named network's breaker.
func (s *Server) handleCircuitReset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("network")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Missing network parameter"))
		return
	}

	net, err := s.exec.Network(name)
	if err != nil || net.Breaker == nil {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(fmt.Sprintf("No circuit breaker for network %s", name)))
		return
	}

	net.Breaker.Reset()
	s.logger.NoticeWithNetwork(name, "Circuit breaker reset via API")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fmt.Sprintf("Circuit breaker for network %s reset", name)))
}
