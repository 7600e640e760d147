package railsim

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	raildto "github.com/radieske/updown-rounds/internal/payout/rail/dto"
)

// Server simula o trilho de pagamento (mock)
// Chaves já concluídas devolvem sempre a mesma confirmação; recusas não são guardadas
type Server struct {
	log        *zap.Logger
	rejectRate float64

	mu        sync.Mutex
	rnd       *rand.Rand
	completed map[string]raildto.TransferResponse

	OnTransfer func(status string) // métricas por resultado
}

// NewServer cria o simulador; rejectRate em [0,1] é a chance de recusar uma transferência nova
func NewServer(log *zap.Logger, rejectRate float64, seed int64) *Server {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Server{
		log:        log,
		rejectRate: rejectRate,
		rnd:        rand.New(rand.NewSource(seed)),
		completed:  make(map[string]raildto.TransferResponse),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/transfers", s.transfer)
	return r
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req raildto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = req.IdempotencyKey
	}
	amount, err := decimal.NewFromString(req.Amount)
	if key == "" || req.Recipient == "" || err != nil || !amount.IsPositive() {
		http.Error(w, "invalid transfer", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	resp, seen := s.completed[key]
	if !seen {
		if s.rnd.Float64() < s.rejectRate {
			resp = raildto.TransferResponse{Status: raildto.StatusRejected, Reason: "rail_reject_mock"}
		} else {
			resp = raildto.TransferResponse{Status: raildto.StatusCompleted, Confirmation: "RAIL-" + uuid.NewString()}
			s.completed[key] = resp
		}
	}
	s.mu.Unlock()

	s.log.Info("transfer",
		zap.String("idempotency_key", key),
		zap.String("recipient", req.Recipient),
		zap.String("amount", req.Amount),
		zap.String("asset", req.Asset),
		zap.String("status", resp.Status),
		zap.Bool("replay", seen),
	)
	if s.OnTransfer != nil {
		s.OnTransfer(resp.Status)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
