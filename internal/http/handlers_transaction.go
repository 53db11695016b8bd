package http

import (
	"net/http"
	"strconv"

	"moneyledger/internal/core"
	"moneyledger/internal/services"
)

type createTransactionRequest struct {
	Type        core.Type  `json:"type"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Division    string     `json:"division"`
	AccountID   string     `json:"accountId"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.engine.Create(r.Context(), ownerID, services.CreateTransactionRequest{
		Type:        req.Type,
		AmountCents: req.Amount.Cents,
		Category:    req.Category,
		Description: req.Description,
		Division:    req.Division,
		AccountID:   req.AccountID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, ownerID string) {
	txs, err := s.engine.Transactions(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txs))
}

type updateTransactionRequest struct {
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.engine.Update(r.Context(), ownerID, r.PathValue("id"), services.UpdateTransactionRequest{
		AmountCents: req.Amount.Cents,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	if err := s.engine.Delete(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleRestoreTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	if err := s.engine.Restore(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request, ownerID string) {
	txs, err := s.engine.Deleted(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txs))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, ownerID string) {
	summary, err := s.engine.Summary(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSummaryByPeriod(w http.ResponseWriter, r *http.Request, ownerID string) {
	summary, err := s.engine.SummaryByPeriod(r.Context(), ownerID, r.PathValue("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleByDivision(w http.ResponseWriter, r *http.Request, ownerID string) {
	txs, err := s.engine.ByDivision(r.Context(), ownerID, r.PathValue("division"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txs))
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request, ownerID string) {
	query := r.URL.Query()
	txs, err := s.engine.Between(r.Context(), ownerID, query.Get("from"), query.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txs))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, ownerID string) {
	query := r.URL.Query()
	report, err := s.engine.Report(r.Context(), ownerID, query.Get("from"), query.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, ownerID string) {
	categories, err := s.engine.CategorySummary(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request, ownerID string) {
	query := r.URL.Query()
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil {
		writeError(w, r, core.ErrInvalidInput)
		return
	}
	size, err := strconv.Atoi(query.Get("size"))
	if err != nil {
		writeError(w, r, core.ErrInvalidInput)
		return
	}
	result, err := s.engine.Paged(r.Context(), ownerID, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.Items == nil {
		result.Items = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, result)
}

func emptyIfNil(txs []core.Transaction) []core.Transaction {
	if txs == nil {
		return []core.Transaction{}
	}
	return txs
}
