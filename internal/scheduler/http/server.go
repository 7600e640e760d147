package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/scheduler"
)

type Runner interface {
	Run(ctx context.Context) scheduler.Result
}

// API expõe o gatilho manual/externo do agendador
type API struct {
	Log       *zap.Logger
	Scheduler Runner
	Timeout   time.Duration // limite de uma execução disparada por HTTP
}

// Router retorna o roteador HTTP com as rotas de administração
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/admin/run-scheduler", a.runScheduler)
	r.Get("/admin/run-scheduler", a.runScheduler) // uso manual pelo navegador
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// runScheduler executa uma passada completa e devolve {success, message, summary}
func (a *API) runScheduler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	res := a.Scheduler.Run(ctx)
	a.Log.Info("scheduler triggered over http",
		zap.String("method", r.Method),
		zap.Bool("success", res.Success),
		zap.String("message", res.Message),
	)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}
