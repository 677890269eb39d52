package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/darestream/darestream/internal/server"
	"github.com/darestream/darestream/internal/stats"
	"github.com/darestream/darestream/internal/types"
)

type StartStreamRequest struct {
	Title     string `json:"title"`
	Challenge string `json:"challenge,omitempty"`
}

type StartStreamResponse struct {
	Session    types.Session `json:"session"`
	MediaToken string        `json:"media_token"`
}

type PurchaseRequest struct {
	// Amount is in currency units; the credited tokens are amount * 100.
	Amount        int    `json:"amount"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type PurchaseResponse struct {
	Credited int `json:"credited"`
	Balance  int `json:"balance"`
}

type BalanceResponse struct {
	Balance int `json:"balance"`
}

func (s *DareStreamApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *DareStreamApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.archive.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *DareStreamApp) listStreams(w http.ResponseWriter, _ *http.Request) {
	live := s.registry.ListLive()
	if live == nil {
		live = []types.Session{}
	}

	s.writeJson(w, http.StatusOK, live)
}

func (s *DareStreamApp) getStream(w http.ResponseWriter, r *http.Request) {
	session, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		errResp := domainError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, session)
}

func (s *DareStreamApp) startStream(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req StartStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, token, err := s.registry.Start(r.Context(), userId, req.Title, req.Challenge)
	if err != nil {
		errResp := domainError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.stats.Incr(stats.ActiveSessions)
	s.writeJson(w, http.StatusCreated, StartStreamResponse{
		Session:    session,
		MediaToken: token,
	})
}

func (s *DareStreamApp) listDares(w http.ResponseWriter, r *http.Request) {
	status := types.DareStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = types.DarePending
	}

	dareList := s.queue.List(r.PathValue("id"), status)
	if dareList == nil {
		dareList = []types.Dare{}
	}

	s.writeJson(w, http.StatusOK, dareList)
}

func (s *DareStreamApp) listGoals(w http.ResponseWriter, r *http.Request) {
	goals := s.queue.ListGoals(r.PathValue("id"))
	if goals == nil {
		goals = []types.Goal{}
	}

	s.writeJson(w, http.StatusOK, goals)
}

func (s *DareStreamApp) topDares(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if q := r.URL.Query().Get("limit"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		limit = parsed
	}

	dareList, err := s.archive.TopDares(r.Context(), limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if dareList == nil {
		dareList = []types.Dare{}
	}

	s.writeJson(w, http.StatusOK, dareList)
}

func (s *DareStreamApp) sessionHistory(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// only the host can list their own past sessions
	hostId := r.PathValue("id")
	if hostId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sessions, err := s.archive.SessionHistory(r.Context(), hostId, 50)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if sessions == nil {
		sessions = []types.Session{}
	}

	s.writeJson(w, http.StatusOK, sessions)
}

// purchaseTokens charges the payment collaborator first; tokens are only
// credited once the charge succeeds.
func (s *DareStreamApp) purchaseTokens(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Amount <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.payments.Charge(r.Context(), userId, req.Amount); err != nil {
		s.log.Printf("charge for %q failed: %v", userId, err)
		errResp := domainError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	credited := req.Amount * tokensPerUnit
	balance, err := s.ledger.Credit(r.Context(), userId, credited)
	if err != nil {
		// the charge went through but the credit did not; this needs a
		// manual reconciliation, so log loudly
		s.log.Printf("CREDIT FAILED AFTER CHARGE user=%q tokens=%d: %v", userId, credited, err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, PurchaseResponse{
		Credited: credited,
		Balance:  balance,
	})
}

func (s *DareStreamApp) balance(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	balance, err := s.ledger.Balance(r.Context(), userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, BalanceResponse{Balance: balance})
}

func (s *DareStreamApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(userId, conn, s.ss, s.log)
	s.ss.RegisterChan <- client

	go client.Write()
	go client.Read()
}
