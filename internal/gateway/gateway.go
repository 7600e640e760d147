package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Targets são as URLs base dos serviços atrás do gateway
type Targets struct {
	Bets      string // bet-service: /bets, /rounds, /accounts
	Scheduler string // round-scheduler: /admin
}

func rp(log *zap.Logger, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return p, nil
}

// New monta o roteador público: /api/* é repassado sem o prefixo
func New(log *zap.Logger, t Targets) (http.Handler, error) {
	bets, err := rp(log, t.Bets)
	if err != nil {
		return nil, err
	}
	sched, err := rp(log, t.Scheduler)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(withCORS)

	api := chi.NewRouter()
	api.Handle("/bets", bets)
	api.Handle("/bets/*", bets)
	api.Handle("/rounds/*", bets)
	api.Handle("/accounts/*", bets)
	api.Handle("/rankings", bets)
	api.Handle("/stats", bets)
	api.Handle("/ws/*", bets)
	api.Handle("/admin/*", sched)
	r.Mount("/api", http.StripPrefix("/api", api))

	return r, nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
