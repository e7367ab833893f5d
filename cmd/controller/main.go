package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/config"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/dispatch"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/httpapi"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/id"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/llm"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/session"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region main
func main() {
	var (
		verbose   bool
		readStdin bool
		sessionID string
	)

	rootCmd := &cobra.Command{
		Use:   "controller",
		Short: "Batch on-page activity, score it, and push hints when the learner is stuck",
		Long: `controller buffers capture records, seals them into annotated batches,
scores each batch for signs of struggle or success, and decides when and how
strongly to interrupt with a generated hint. Configuration comes from NUDGE_*
environment variables and an optional YAML tuning file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runOptions{verbose: verbose, readStdin: readStdin, sessionID: sessionID})
		},
	}
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&readStdin, "stdin", false, "read JSON-lines capture records from stdin")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "resume this session id instead of starting a new one")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region run
type runOptions struct {
	verbose   bool
	readStdin bool
	sessionID string
}

func run(ctx context.Context, opts runOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Env, opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := id.Init(cfg.NodeID); err != nil {
		return fmt.Errorf("init id node: %w", err)
	}
	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return err
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = ":memory:"
	}
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	gen, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}
	retrying := llm.NewRetrying(gen, llm.DefaultRetryConfig(), logger)
	defer retrying.Close()

	var rdb *redis.Client
	notifier := dispatch.Multi{dispatch.NewLogNotifier(logger)}
	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(redisOpts)
		defer rdb.Close()
		notifier = append(notifier, dispatch.NewRedisNotifier(rdb, cfg.Redis.EventStream))
	}

	sess, err := session.New(session.Options{
		ID:        opts.sessionID,
		Tuning:    tuning,
		Generator: retrying,
		Store:     store,
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	logger.Info("controller ready",
		zap.String("session_id", sess.ID()),
		zap.String("db", dbPath),
		zap.String("provider", string(cfg.LLM.Provider)),
		zap.String("http", cfg.HTTPAddr),
		zap.Bool("redis", rdb != nil),
	)

	sink := func(_ context.Context, rec capture.Record) { sess.Ingest(rec) }

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(ctx) })
	g.Go(func() error { return serveHTTP(ctx, cfg, sess, logger) })

	if rdb != nil {
		rcfg := capture.DefaultRedisSourceConfig()
		rcfg.Stream = cfg.Redis.CaptureStream
		rcfg.Consumer = fmt.Sprintf("controller-%d", cfg.NodeID)
		src, err := capture.NewRedisSource(ctx, rdb, rcfg, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return src.Run(ctx, sink) })
	}
	if opts.readStdin {
		src := capture.NewJSONLSource(stdinUntilDone(ctx), logger)
		g.Go(func() error {
			if err := src.Run(ctx, sink); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	if cfg.TuningFile != "" {
		w := config.NewTuningWatcher(cfg.TuningFile, func(t config.Tuning) {
			if err := sess.ApplyTuning(t); err != nil {
				logger.Warn("tuning not applied", zap.Error(err))
			}
		}, logger)
		g.Go(func() error { return w.Run(ctx) })
	}

	err = g.Wait()
	logger.Info("controller stopped", zap.Error(err))
	return err
}

// #endregion run

// #region http
func serveHTTP(ctx context.Context, cfg config.Config, sess *session.Session, logger *zap.Logger) error {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(sess, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// #endregion http

// #region stdin
// stdinUntilDone closes the reader side when ctx ends so a blocked scan
// returns.
func stdinUntilDone(ctx context.Context) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, os.Stdin)
		pw.CloseWithError(err)
	}()
	go func() {
		<-ctx.Done()
		pr.Close()
	}()
	return pr
}

// #endregion stdin
