// Package server exposes an engine.OrderBook over HTTP and websockets.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ladderbot/engine"
)

// Options configures a Server. An empty AuthToken disables authentication.
type Options struct {
	AuthToken  string
	CORSOrigin string
	Logger     *zap.Logger
	// NewID assigns ids to orders submitted without one. Defaults to uuid.NewString.
	NewID func() string
}

type Server struct {
	book     *engine.OrderBook
	router   *mux.Router
	handler  http.Handler
	tradeHub *hub[engine.MatchResult]
	bookHub  *hub[engine.BookView]
	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger
}

type orderRequest struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Type     string          `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type orderResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type snapshotResponse struct {
	BestBid *publicOrder `json:"bestBid,omitempty"`
	BestAsk *publicOrder `json:"bestAsk,omitempty"`
}

type publicOrder struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Type      string          `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Remaining decimal.Decimal `json:"remaining"`
	Timestamp time.Time       `json:"timestamp"`
}

// DepthEntry is one aggregated price level. Volume is positive for bids and
// negative for asks.
type DepthEntry struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

type publicMatch struct {
	Symbol      string          `json:"symbol"`
	BuyOrderID  string          `json:"buyOrderId"`
	SellOrderID string          `json:"sellOrderId"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	ExecutedAt  time.Time       `json:"executedAt"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// New builds a server over book and starts fanning its trade and top-of-book
// streams out to websocket subscribers. The server becomes the only reader of
// book.Trades(); other consumers use SubscribeTrades.
func New(book *engine.OrderBook, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}

	s := &Server{
		book:     book,
		router:   mux.NewRouter(),
		tradeHub: newHub[engine.MatchResult](),
		bookHub:  newHub[engine.BookView](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		opts:     opts,
		logger:   opts.Logger,
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{opts.CORSOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.handler = c.Handler(s.router)

	go s.consumeTrades()
	go s.consumeBookUpdates()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(s.withAuth)
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	api.HandleFunc("/book", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/depth", s.handleDepth).Methods(http.MethodGet)
	api.HandleFunc("/ws/trades", s.handleTradeStream)
	api.HandleFunc("/ws/book", s.handleBookStream)
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SubscribeTrades returns a buffered copy of the trade stream and a function
// that ends the subscription. The channel closes when the book stops.
func (s *Server) SubscribeTrades(buffer int) (<-chan engine.MatchResult, func()) {
	sub := s.tradeHub.Subscribe(buffer)
	return sub.ch, func() { s.tradeHub.Unsubscribe(sub) }
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.opts.AuthToken {
			writeError(w, http.StatusUnauthorized, errors.New("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "symbol": s.book.Config().Symbol})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	order, err := s.buildOrder(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.book.SubmitOrder(order); err != nil {
		s.logger.Debug("order rejected", zap.String("id", order.ID), zap.Error(err))
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Debug("order accepted",
		zap.String("id", order.ID),
		zap.Stringer("side", order.Side),
		zap.String("price", order.Price.String()),
		zap.String("quantity", order.Quantity.String()))
	writeJSON(w, http.StatusAccepted, orderResponse{Status: "accepted", ID: order.ID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.book.CancelOrder(id)
	switch {
	case errors.Is(err, engine.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, orderResponse{Status: "cancelled", ID: id})
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	view, err := s.book.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshot(view))
}

func (s *Server) handleDepth(w http.ResponseWriter, _ *http.Request) {
	levels, err := s.book.Depth()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	entries := make([]DepthEntry, 0, len(levels))
	for _, lvl := range levels {
		volume := lvl.Quantity
		if lvl.Side == engine.Sell {
			volume = volume.Neg()
		}
		entries = append(entries, DepthEntry{Price: lvl.Price, Volume: volume})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.tradeHub.Subscribe(32)
	defer s.tradeHub.Unsubscribe(sub)
	s.logger.Debug("trade stream subscriber", zap.String("remote", r.RemoteAddr))

	for trade := range sub.ch {
		msg := outboundMessage{Type: "trade", Data: toPublicMatch(trade)}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.bookHub.Subscribe(32)
	defer s.bookHub.Unsubscribe(sub)
	s.logger.Debug("book stream subscriber", zap.String("remote", r.RemoteAddr))

	for view := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: "book", Data: toSnapshot(view)}); err != nil {
			return
		}
	}
}

func (s *Server) consumeTrades() {
	for trade := range s.book.Trades() {
		s.tradeHub.Broadcast(trade)
	}
	s.tradeHub.Close()
}

func (s *Server) consumeBookUpdates() {
	for view := range s.book.BookUpdates() {
		s.bookHub.Broadcast(view)
	}
	s.bookHub.Close()
}

func (s *Server) buildOrder(req orderRequest) (engine.Order, error) {
	if req.Quantity.Sign() <= 0 {
		return engine.Order{}, errors.New("quantity must be positive")
	}

	side, err := parseSide(req.Side)
	if err != nil {
		return engine.Order{}, err
	}
	ordType, err := parseOrderType(req.Type)
	if err != nil {
		return engine.Order{}, err
	}

	if req.ID == "" {
		req.ID = s.opts.NewID()
	}
	if req.Symbol == "" {
		req.Symbol = s.book.Config().Symbol
	}

	return engine.Order{
		ID:       req.ID,
		Symbol:   req.Symbol,
		Side:     side,
		Type:     ordType,
		Price:    req.Price,
		Quantity: req.Quantity,
	}, nil
}

func parseSide(value string) (engine.Side, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return engine.Buy, nil
	case "sell", "ask", "s":
		return engine.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", value)
	}
}

// parseOrderType defaults to limit when the type is omitted.
func parseOrderType(value string) (engine.OrderType, error) {
	switch strings.ToLower(value) {
	case "", "limit", "lmt":
		return engine.Limit, nil
	case "market", "mkt":
		return engine.Market, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", value)
	}
}

func toSnapshot(view engine.BookView) snapshotResponse {
	return snapshotResponse{
		BestBid: toPublicOrder(view.BestBid),
		BestAsk: toPublicOrder(view.BestAsk),
	}
}

func toPublicOrder(order *engine.Order) *publicOrder {
	if order == nil {
		return nil
	}
	return &publicOrder{
		ID:        order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side.String(),
		Type:      order.Type.String(),
		Price:     order.Price,
		Quantity:  order.Quantity,
		Remaining: order.Remaining,
		Timestamp: order.Timestamp,
	}
}

func toPublicMatch(match engine.MatchResult) publicMatch {
	return publicMatch{
		Symbol:      match.Symbol,
		BuyOrderID:  match.BuyOrderID,
		SellOrderID: match.SellOrderID,
		Price:       match.Price,
		Quantity:    match.Quantity,
		ExecutedAt:  match.Timestamp,
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
