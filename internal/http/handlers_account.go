package http

import (
	"net/http"

	"moneyledger/internal/core"
)

type createAccountRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.ledger.CreateAccount(r.Context(), ownerID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, ownerID string) {
	accounts, err := s.ledger.Accounts(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

type transferRequest struct {
	FromID string     `json:"fromId"`
	ToID   string     `json:"toId"`
	Amount core.Money `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Transfer(r.Context(), ownerID, req.FromID, req.ToID, req.Amount.Cents); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
