package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lekki-homes/leadflow/internal/approval"
	"github.com/lekki-homes/leadflow/internal/insight"
	"github.com/lekki-homes/leadflow/internal/intake"
	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/monitoring"
	"github.com/lekki-homes/leadflow/internal/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with the background poll loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			runPollLoop(gctx, env)
			return nil
		})

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}

		return g.Wait()
	},
}

// runPollLoop runs inbox poll cycles until the context is cancelled.
func runPollLoop(ctx context.Context, env *appEnv) {
	interval := time.Duration(cfg.Poll.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "poll.loop"))
	log.Info("starting poll loop", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("poll loop stopped")
			return
		case <-ticker.C:
			res, err := env.Poll.RunCycle(ctx)
			if err != nil {
				log.Error("poll cycle failed", zap.Error(err))
				continue
			}
			log.Info("poll cycle complete",
				zap.Int("fetched", res.Summary.Fetched),
				zap.Int("processed", res.Summary.Processed),
				zap.Int("duplicates", res.Summary.Duplicates),
				zap.Int("unmatched", res.Summary.Unmatched),
			)
		}
	}
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Idempotency-Key"},
	}))

	limiter := ratelimit.NewKeyed(cfg.Webhook.RatePerMinute, cfg.Webhook.RateBurst)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(rateLimit(limiter)).Post("/leads/webhook", handleWebhook(env))
		r.Get("/leads", handleListLeads(env))
		r.Get("/insights", handleInsights(env))
		r.Post("/emails/poll", handlePoll(env))
		r.Get("/emails/drafts", handleListDrafts(env))
		r.Post("/emails/{id}/send", handleSendDraft(env))
	})

	return r
}

// rateLimit rejects bursts per client IP with 429.
func rateLimit(limiter *ratelimit.Keyed) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			}
			if !limiter.Allow(key) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleWebhook(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		payload, err := intake.ParsePayload(body, r.Header.Get("X-Idempotency-Key"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := env.Intake.Process(r.Context(), payload)
		if err != nil {
			var vErr *intake.ValidationError
			var dupErr *intake.DuplicateLeadError
			var sendErr *intake.InitialEmailSendError
			switch {
			case errors.As(err, &vErr):
				writeError(w, http.StatusBadRequest, vErr.Error())
			case errors.As(err, &dupErr):
				writeError(w, http.StatusConflict, dupErr.Error())
			case errors.As(err, &sendErr):
				writeError(w, http.StatusBadGateway, sendErr.Error())
			default:
				zap.L().Error("webhook processing failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		status := http.StatusCreated
		if result.Idempotent {
			status = http.StatusOK
		}
		writeJSON(w, status, result)
	}
}

func handleListLeads(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leads, err := env.Store.ListLeads(r.Context())
		if err != nil {
			zap.L().Error("list leads failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
	}
}

func handleInsights(env *appEnv) http.HandlerFunc {
	type leadView struct {
		Lead    model.Lead          `json:"lead"`
		Insight insight.LeadInsight `json:"insight"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		leads, err := env.Store.ListLeads(r.Context())
		if err != nil {
			zap.L().Error("list leads failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		now := time.Now().UTC()
		views := make([]leadView, 0, len(leads))
		for _, l := range leads {
			views = append(views, leadView{Lead: l, Insight: insight.BuildLeadInsight(l, now)})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"portfolio": insight.BuildPortfolioInsight(leads, now),
			"leads":     views,
		})
	}
}

func handlePoll(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := env.Poll.RunCycle(r.Context())
		if err != nil {
			zap.L().Error("poll cycle failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "poll cycle failed")
			return
		}
		writeJSON(w, http.StatusOK, res.Summary)
	}
}

func handleListDrafts(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := model.DraftStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = model.DraftPendingApproval
		}
		drafts, err := env.Store.ListDrafts(r.Context(), status)
		if err != nil {
			zap.L().Error("list drafts failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
	}
}

func handleSendDraft(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExpectedStatus model.DraftStatus `json:"expected_status"`
			Body           string            `json:"body"`
			ThreadID       string            `json:"thread_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		out, err := env.Approval.Send(r.Context(), approval.Input{
			DraftID:        chi.URLParam(r, "id"),
			ExpectedStatus: req.ExpectedStatus,
			Body:           req.Body,
			ThreadID:       req.ThreadID,
		})
		if err != nil {
			var notFound *approval.DraftNotFoundError
			var leadGone *approval.LeadNotFoundError
			var mismatch *approval.DraftStatusMismatchError
			var thread *approval.ThreadMismatchError
			switch {
			case errors.As(err, &notFound), errors.As(err, &leadGone):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.As(err, &mismatch):
				writeError(w, http.StatusConflict, err.Error())
			case errors.As(err, &thread):
				writeError(w, http.StatusConflict, err.Error())
			default:
				zap.L().Error("draft send failed", zap.Error(err))
				writeError(w, http.StatusBadGateway, "send failed")
			}
			return
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
