// Package httpapi expõe o engine via REST. Identidade vem do header
// X-User-ID; autenticação real fica fora do escopo.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/engine"
	"github.com/radieske/bet-market-engine/internal/market"
	oddscache "github.com/radieske/bet-market-engine/internal/market/cache"
	"github.com/radieske/bet-market-engine/internal/market/dto"
)

const userHeader = "X-User-ID"

type Server struct {
	engine *engine.Engine
	cache  *oddscache.OddsCache // opcional; nil desliga o cache de odds
	log    *zap.Logger

	// Contadores injetados pelo main (no-op quando nil).
	OnTradePlaced func()
	OnTradeSold   func()
}

func New(eng *engine.Engine, cache *oddscache.OddsCache, log *zap.Logger) *Server {
	return &Server{engine: eng, cache: cache, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/trades", s.handlePlaceTrade)
		r.Get("/trades/{id}", s.handleGetTrade)
		r.Post("/trades/{id}/sell", s.handleSellTrade)
		r.Post("/trades/{id}/buy", s.handleBuyTrade)

		r.Get("/wallet", s.handleGetWallet)
		r.Post("/wallet/deposit", s.handleDeposit)

		r.Get("/events", s.handleListEvents)
		r.Get("/events/{id}", s.handleGetEvent)
		r.Get("/events/{id}/odds", s.handleGetOdds)
	})

	return r
}

func (s *Server) handlePlaceTrade(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, market.Errorf(market.CodeInvalidArgument, "invalid json body"))
		return
	}

	tr, err := s.engine.PlaceBet(r.Context(), userID(r), req.EventID,
		market.Outcome(req.Outcome), req.Amount, req.Odds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.OnTradePlaced != nil {
		s.OnTradePlaced()
	}
	writeJSON(w, http.StatusCreated, dto.NewTradeResponse(tr))
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	tr, err := s.engine.GetTrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewTradeResponse(tr))
}

func (s *Server) handleSellTrade(w http.ResponseWriter, r *http.Request) {
	var req dto.SellTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, market.Errorf(market.CodeInvalidArgument, "invalid json body"))
		return
	}

	tr, err := s.engine.ListForSale(r.Context(), userID(r), chi.URLParam(r, "id"), req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewTradeResponse(tr))
}

func (s *Server) handleBuyTrade(w http.ResponseWriter, r *http.Request) {
	tr, err := s.engine.Buy(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.OnTradeSold != nil {
		s.OnTradeSold()
	}
	writeJSON(w, http.StatusOK, dto.NewTradeResponse(tr))
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	u, err := s.engine.GetWallet(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{
		UserID:   u.ID,
		Wallet:   u.Wallet,
		Pnl:      u.Pnl,
		TradeIDs: u.TradeIDs,
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, market.Errorf(market.CodeInvalidArgument, "invalid json body"))
		return
	}

	balance, err := s.engine.Deposit(r.Context(), userID(r), req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DepositResponse{UserID: userID(r), Wallet: balance})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.engine.ListEvents(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.EventResponse, 0, len(evs))
	for _, ev := range evs {
		out = append(out, dto.NewEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.engine.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewEventResponse(ev))
}

// handleGetOdds serve a linha corrente com read-through no Redis.
func (s *Server) handleGetOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.cache != nil {
		if snap, ok := s.cache.Get(r.Context(), id); ok {
			writeJSON(w, http.StatusOK, dto.OddsResponse{
				EventID:   snap.EventID,
				Home:      snap.Home,
				Away:      snap.Away,
				Draw:      snap.Draw,
				UpdatedAt: snap.At,
			})
			return
		}
	}

	ev, err := s.engine.GetEvent(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), oddscache.OddsSnapshot{
			EventID: ev.ID,
			Home:    ev.HomeOdds,
			Away:    ev.AwayOdds,
			Draw:    ev.DrawOdds,
			At:      ev.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, dto.OddsResponse{
		EventID:   ev.ID,
		Home:      ev.HomeOdds,
		Away:      ev.AwayOdds,
		Draw:      ev.DrawOdds,
		UpdatedAt: ev.UpdatedAt,
	})
}

func userID(r *http.Request) string {
	return r.Header.Get(userHeader)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := market.Code(err)
	status := statusFor(code)
	if status >= 500 {
		s.log.Error("erro interno na API", zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Code: string(code), Error: err.Error()})
}

func statusFor(code market.ErrCode) int {
	switch code {
	case market.CodeInvalidArgument:
		return http.StatusBadRequest
	case market.CodeUnauthenticated:
		return http.StatusUnauthorized
	case market.CodeNotFound:
		return http.StatusNotFound
	case market.CodeFailedPrecondition:
		return http.StatusConflict
	case market.CodeAborted:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
