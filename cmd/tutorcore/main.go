package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antoniostano/tutorcore/internal/audit"
	"github.com/antoniostano/tutorcore/internal/config"
	"github.com/antoniostano/tutorcore/internal/escalation"
	"github.com/antoniostano/tutorcore/internal/httpapi"
	"github.com/antoniostano/tutorcore/internal/job"
	"github.com/antoniostano/tutorcore/internal/observability"
	"github.com/antoniostano/tutorcore/internal/orchestrator"
	"github.com/antoniostano/tutorcore/internal/routing"
	"github.com/antoniostano/tutorcore/internal/safety"
	"github.com/antoniostano/tutorcore/internal/session"
	"github.com/antoniostano/tutorcore/internal/specialist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	var auditSink audit.Sink
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pgSink, err := audit.NewPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("audit sink init failed: %v", err)
		}
		auditSink = pgSink
		log.Printf("audit sink: postgres")
	} else {
		auditSink = audit.NewInMemorySink()
		log.Printf("audit sink: in-memory (DATABASE_URL not set)")
	}
	defer auditSink.Close()

	var router routing.IntentRouter
	if strings.TrimSpace(cfg.RouterHTTPURL) != "" {
		router = routing.NewHTTPRouter(cfg.RouterHTTPURL, cfg.RouterTimeout)
		log.Printf("intent router: http (%s)", cfg.RouterHTTPURL)
	} else {
		router = routing.StaticRouter{Result: routing.RoutingResult{Subject: routing.SubjectEnglish, Confidence: 0.5}}
		log.Printf("intent router: static fallback (ROUTER_HTTP_URL not set)")
	}

	var checker safety.Checker
	if strings.TrimSpace(cfg.SafetyHTTPURL) != "" {
		checker = safety.NewHTTPChecker(cfg.SafetyHTTPURL, cfg.SafetyTimeout)
		log.Printf("safety checker: http (%s)", cfg.SafetyHTTPURL)
	} else {
		checker = safety.LocalChecker{}
		log.Printf("safety checker: local regex fallback (SAFETY_HTTP_URL not set)")
	}

	registry := specialist.NewHTTPRegistry(cfg.SpecialistMathURL, cfg.SpecialistHistoryURL, cfg.SpecialistEnglishURL)

	sessions := session.NewManager(cfg.SessionIdleTimeout)
	sessions.SetExpireHook(func(snap session.Snapshot) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	jobs := job.NewStore(cfg.JobTTL)
	jobs.SetReclaimHook(func(n int) {
		metrics.ObserveJobsReclaimed(n)
	})

	bus := escalation.NewBus(auditSink)
	bus.SetAuditFailureHook(func(kind string) {
		metrics.ObserveAuditWriteFailure(kind)
	})

	orch := orchestrator.New(
		orchestrator.Config{PipelineTimeout: cfg.OrchestratorTimeout},
		router,
		registry,
		checker,
		auditSink,
		jobs,
		sessions,
		metrics,
	)

	api := httpapi.New(cfg, sessions, orch, bus, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)
	jobs.StartReclaimer(runCtx, cfg.JobReclaimInterval)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
