package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"clob_go/internal/domain"
	"clob_go/internal/store"
	"clob_go/internal/trade"
)

// Server exposes the market view and order operations over HTTP.
type Server struct {
	store  *store.Store
	trader *trade.Manager
	router *mux.Router
	log    *slog.Logger
	http   *http.Server
}

func NewServer(st *store.Store, trader *trade.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:  st,
		trader: trader,
		router: mux.NewRouter(),
		log:    log,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/market", s.handleGetMarket).Methods("GET")
	s.router.HandleFunc("/book", s.handleGetBook).Methods("GET")
	s.router.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	s.router.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	s.router.HandleFunc("/crank", s.handleCrank).Methods("POST")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

func (s *Server) Router() http.Handler { return s.router }

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type marketResponse struct {
	Market         *domain.Market `json:"market"`
	EventHeapCount uint32         `json:"event_heap_count"`
	Loading        bool           `json:"loading"`
	PlacingOrder   bool           `json:"placing_order"`
	Cranking       bool           `json:"cranking"`
	DecodeError    string         `json:"decode_error,omitempty"`
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	resp := marketResponse{
		EventHeapCount: s.store.EventHeapCount(),
		Loading:        s.store.Loading(),
		PlacingOrder:   s.store.IsPlacingOrder(),
		Cranking:       s.store.IsCranking(),
	}
	if m, ok := s.store.Market(); ok {
		resp.Market = &m
	}
	if err := s.store.DecodeErr(); err != nil {
		resp.DecodeError = err.Error()
	}
	if resp.Market == nil {
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Book()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "book not loaded yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.store.Orders()
	if orders == nil {
		orders = []domain.OpenOrderRecord{}
	}
	respondJSON(w, http.StatusOK, orders)
}

type placeOrderRequest struct {
	Side   string `json:"side"`   // "bid" or "ask"
	Kind   string `json:"kind"`   // "limit" or "market"
	Price  string `json:"price"`  // display units, ignored for market orders
	Amount int64  `json:"amount"` // whole base lots
}

type placeOrderResponse struct {
	ClientID string   `json:"client_id"`
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	intent, err := parseIntent(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	clientID, warnings, err := s.trader.PlaceOrder(r.Context(), intent)
	switch {
	case errors.Is(err, trade.ErrOrderInFlight):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, trade.ErrNoMarket):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		var subErr *trade.SubmissionError
		if errors.As(err, &subErr) {
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, placeOrderResponse{
		ClientID: clientID.String(),
		Warnings: warnings,
	})
}

type crankRequest struct {
	Event string `json:"event,omitempty"` // optional single event account
	Limit uint16 `json:"limit,omitempty"`
}

func (s *Server) handleCrank(w http.ResponseWriter, r *http.Request) {
	var req crankRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}

	cr := domain.CrankRequest{Limit: req.Limit}
	if req.Event != "" {
		ev, err := domain.ParseAddress(req.Event)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid event address: "+err.Error())
			return
		}
		cr.Event = &ev
	}

	err := s.trader.Crank(r.Context(), cr)
	switch {
	case errors.Is(err, trade.ErrCrankInFlight):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, trade.ErrNoMarket):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "cranked"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"loading": s.store.Loading(),
	})
}

func parseIntent(req placeOrderRequest) (domain.OrderIntent, error) {
	var intent domain.OrderIntent

	switch strings.ToLower(req.Side) {
	case "bid", "buy":
		intent.Side = domain.Bid
	case "ask", "sell":
		intent.Side = domain.Ask
	default:
		return intent, errors.New("side must be bid or ask")
	}

	switch strings.ToLower(req.Kind) {
	case "limit", "":
		intent.Kind = domain.Limit
	case "market":
		intent.Kind = domain.MarketOrder
	default:
		return intent, errors.New("kind must be limit or market")
	}

	if intent.Kind == domain.Limit {
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			return intent, errors.New("price must be a decimal number")
		}
		intent.Price = price
	}

	intent.Quantity = req.Amount
	return intent, nil
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
