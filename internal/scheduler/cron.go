package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec roda a cada 10 segundos (formato com segundos)
const DefaultSpec = "*/10 * * * * *"

// Runner dispara o Scheduler na cadência configurada.
// Uma execução que ainda não terminou faz o tick seguinte ser pulado.
type Runner struct {
	cron    *cron.Cron
	log     *zap.Logger
	baseCtx context.Context
}

func NewRunner(log *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:     log,
		baseCtx: baseCtx,
	}
}

// Job é qualquer coisa que execute uma passada do agendador
type Job interface {
	Run(ctx context.Context) Result
}

// Schedule registra uma execução do job por tick
func (r *Runner) Schedule(spec string, s Job) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	return r.cron.AddFunc(spec, func() {
		res := s.Run(r.baseCtx)
		if !res.Success {
			r.log.Warn("scheduled run failed", zap.String("message", res.Message))
		}
	})
}

func (r *Runner) Start() {
	r.log.Info("cron started")
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("cron stopped")
}
