package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/usdt-settlement-engine/internal/settlement/dto"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/engine"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/ledger"
	"github.com/radieske/usdt-settlement-engine/internal/settlement/registry"
)

// Server expõe a API HTTP do motor de liquidação. Autenticação fica na
// borda (gateway); aqui cada request declara o caller e o motor decide
// a autorização.
type Server struct {
	log *zap.Logger
	eng *engine.Engine
}

// NewServer instancia o servidor HTTP de liquidação
func NewServer(log *zap.Logger, eng *engine.Engine) *Server {
	return &Server{log: log, eng: eng}
}

// Router retorna o mux HTTP com as rotas da API de liquidação
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// apostas
	mux.HandleFunc("/bets/place", s.placeBet)
	mux.HandleFunc("/bets/settle", s.settleBet)
	mux.HandleFunc("/bets/cancel", s.cancelBet)
	mux.HandleFunc("/bets/get", s.getBet)
	mux.HandleFunc("/bets", s.userBets)

	// fila e pagamentos
	mux.HandleFunc("/queue", s.queueStats)
	mux.HandleFunc("/queue/process", s.drain)
	mux.HandleFunc("/payments/status", s.status)
	mux.HandleFunc("/payments/partial", s.partial)
	mux.HandleFunc("/payments/queue", s.queueStats)
	mux.HandleFunc("/payments/queue/position", s.queuePosition)

	// tesouraria
	mux.HandleFunc("/ledger", s.ledgerView)
	mux.HandleFunc("/funds/deposit", s.deposit)
	mux.HandleFunc("/funds/withdraw", s.withdraw)
	mux.HandleFunc("/funds/withdraw-fees", s.withdrawFees)

	return mux
}

// placeBet coleta o stake e registra a aposta
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	bettor, ok := parseAddress(req.Bettor)
	if !ok {
		http.Error(w, "invalid bettor address", http.StatusBadRequest)
		return
	}
	betID, err := s.eng.PlaceBet(r.Context(), bettor, req.Stake, req.EventID, req.OutcomeID, req.PotentialWin)
	if err != nil {
		s.fail(w, err)
		return
	}
	bet, _ := s.eng.GetBet(betID)
	writeJSON(w, dto.PlaceBetResponse{BetID: betID, Fee: bet.Fee, Stake: dto.UsdtString(bet.Stake)})
}

// settleBet liquida uma aposta como ganha ou perdida (operação do dono)
func (s *Server) settleBet(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return
	}
	if err := s.eng.SettleBet(r.Context(), caller, req.BetID, req.Won); err != nil {
		s.fail(w, err)
		return
	}
	bet, _ := s.eng.GetBet(req.BetID)
	writeJSON(w, dto.NewBetResponse(bet))
}

// cancelBet cancela uma aposta Pending com estorno integral
func (s *Server) cancelBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return
	}
	if err := s.eng.CancelBet(r.Context(), caller, req.BetID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"Cancelled"}`))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	betID, ok := parseBetID(r)
	if !ok {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}
	bet, err := s.eng.GetBet(betID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.NewBetResponse(bet))
}

func (s *Server) userBets(w http.ResponseWriter, r *http.Request) {
	bettor, ok := parseAddress(r.URL.Query().Get("bettor"))
	if !ok {
		http.Error(w, "bettor required", http.StatusBadRequest)
		return
	}
	writeJSON(w, dto.UserBetsResponse{Bettor: bettor.Hex(), BetIDs: s.eng.UserBets(bettor)})
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, queueStatsResponse(s.eng.QueueStats()))
}

// drain processa a fila de pagamentos (operação administrativa)
func (s *Server) drain(w http.ResponseWriter, r *http.Request) {
	var req dto.ProcessQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return
	}
	if err := s.eng.ProcessPaymentQueue(r.Context(), caller); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, queueStatsResponse(s.eng.QueueStats()))
}

// status retorna o sub-estado de pagamento de uma aposta ganha
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	betID, ok := parseBetID(r)
	if !ok {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}
	st, err := s.eng.PaymentStatus(betID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.NewPaymentStatusUsdt(st.BetID, st.Status.String(), st.PaidAmount, st.RemainingAmount, st.PaymentPercentage, st.QueuePosition))
}

// partial lista as apostas do usuário que entraram em pagamento
func (s *Server) partial(w http.ResponseWriter, r *http.Request) {
	bettor, ok := parseAddress(r.URL.Query().Get("bettor"))
	if !ok {
		http.Error(w, "bettor required", http.StatusBadRequest)
		return
	}
	out := make([]dto.PaymentStatusResponse, 0)
	for _, id := range s.eng.UserBets(bettor) {
		st, err := s.eng.PaymentStatus(id)
		if err != nil {
			continue // não liquidada como ganha ainda
		}
		out = append(out, dto.NewPaymentStatusUsdt(st.BetID, st.Status.String(), st.PaidAmount, st.RemainingAmount, st.PaymentPercentage, st.QueuePosition))
	}
	writeJSON(w, out)
}

// queuePosition retorna a posição na fila; 404 se a aposta não está nela
func (s *Server) queuePosition(w http.ResponseWriter, r *http.Request) {
	betID, ok := parseBetID(r)
	if !ok {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}
	st, err := s.eng.PaymentStatus(betID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if st.QueuePosition == nil {
		http.Error(w, "bet not in payment queue", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"betId": betID, "position": *st.QueuePosition})
}

func (s *Server) ledgerView(w http.ResponseWriter, r *http.Request) {
	lv := s.eng.Ledger()
	writeJSON(w, dto.LedgerResponse{
		CustodiedBalance:    lv.CustodiedBalance,
		AccumulatedFees:     lv.AccumulatedFees,
		CommittedLiability:  lv.CommittedLiability,
		AvailableForPayouts: lv.AvailableForPayouts,
		AvailableUsdt:       dto.UsdtString(lv.AvailableForPayouts),
	})
}

// deposit credita liquidez nova já confirmada no token
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return
	}
	if err := s.eng.RecordDeposit(r.Context(), caller, req.Amount); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	caller, cok := parseAddress(req.Caller)
	dest, dok := parseAddress(req.Destination)
	if !cok || !dok {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	if err := s.eng.Withdraw(r.Context(), caller, dest, req.Amount); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

func (s *Server) withdrawFees(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return
	}
	if err := s.eng.WithdrawFees(r.Context(), caller, req.Amount); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

// fail traduz os erros do motor para status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, registry.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, registry.ErrInvalidState), errors.Is(err, registry.ErrOverpayment):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrUnauthorized), errors.Is(err, engine.ErrUnauthorizedDestination):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, engine.ErrEmptyQueue):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, engine.ErrTransferFailed):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.log.Error("settlement api", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func queueStatsResponse(st engine.QueueStats) dto.QueueStatsResponse {
	return dto.QueueStatsResponse{
		Length:                 st.Length,
		CommittedLiability:     st.CommittedLiability,
		CommittedLiabilityUsdt: dto.UsdtString(st.CommittedLiability),
	}
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseBetID(r *http.Request) (int64, bool) {
	v := r.URL.Query().Get("betId")
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
