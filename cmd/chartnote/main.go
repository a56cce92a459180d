package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chartnote/chartnote/internal/config"
	"github.com/chartnote/chartnote/internal/domain/notes"
	"github.com/chartnote/chartnote/internal/platform/db"
	"github.com/chartnote/chartnote/internal/platform/fhir"
	"github.com/chartnote/chartnote/internal/platform/llm"
	"github.com/chartnote/chartnote/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chartnote",
		Short: "Clinical note generation from FHIR bundles",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func newGenerator(cfg *config.Config, logger zerolog.Logger) *llm.Client {
	return llm.NewClient(llm.Config{
		BaseURL:    cfg.OpenAIBaseURL,
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.OpenAIModel,
		Timeout:    cfg.LLMTimeout(),
		MaxRetries: cfg.LLMMaxRetries,
	}, logger)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	if err := cfg.RequireGeneration(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Persistence is optional; without a database the server still generates
	// notes but does not keep them.
	ctx := context.Background()
	var repo notes.Repository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		repo = notes.NewRepo(pool)

		e := newEcho(cfg, logger)
		e.GET("/health/db", db.HealthHandler(pool))
		return startServer(e, cfg, logger, repo)
	}

	logger.Warn().Msg("DATABASE_URL not set, notes will not be persisted")
	e := newEcho(cfg, logger)
	e.GET("/health/db", db.HealthHandler(nil))
	return startServer(e, cfg, logger, repo)
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", "X-API-Key"},
	}))
	// Synthea lifetime bundles run a few MB; anything past this is not a bundle.
	e.Use(echomw.BodyLimit("20M"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	return e
}

func startServer(e *echo.Echo, cfg *config.Config, logger zerolog.Logger, repo notes.Repository) error {
	gen := newGenerator(cfg, logger)
	svc := notes.NewService(gen, repo, logger)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.APIKeyAuth(cfg.APIKey))
	notes.NewHandler(svc, repo).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func generateCmd() *cobra.Command {
	var outDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate [bundle.json ...]",
		Short: "Generate notes for FHIR bundle files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(args, outDir, dryRun)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default from OUTPUT_DIR)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print prompts without calling the model")
	return cmd
}

func runGenerate(paths []string, outDir string, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	if outDir == "" {
		outDir = cfg.OutputDir
	}

	var svc *notes.Service
	if dryRun {
		svc = notes.NewService(nil, nil, logger)
	} else {
		if err := cfg.RequireGeneration(); err != nil {
			return err
		}
		svc = notes.NewService(newGenerator(cfg, logger), nil, logger)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	files, err := expandPaths(paths)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, file := range files {
		if err := generateFile(ctx, svc, file, outDir, dryRun, logger); err != nil {
			return err
		}
	}
	return nil
}

// expandPaths resolves each argument to bundle files, walking directories for
// *.json entries.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no bundle files found")
	}
	return files, nil
}

func generateFile(ctx context.Context, svc *notes.Service, file, outDir string, dryRun bool, logger zerolog.Logger) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	bundle, err := fhir.ParseBundle(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	if dryRun {
		for i, prompt := range svc.Prompts(bundle) {
			fmt.Printf("--- %s encounter %d ---\n%s\n\n", base, i+1, prompt)
		}
		return nil
	}

	result, err := svc.GenerateFromBundle(ctx, bundle)
	for i, note := range result {
		if note.Status != notes.StatusGenerated {
			continue
		}
		out := filepath.Join(outDir, fmt.Sprintf("%s-note-%d.txt", base, i+1))
		if werr := os.WriteFile(out, []byte(note.Body+"\n"), 0o644); werr != nil {
			return fmt.Errorf("write %s: %w", out, werr)
		}
		logger.Info().Str("file", out).Str("encounter", note.EncounterID).Msg("note written")
	}
	if err != nil {
		return fmt.Errorf("generate %s: %w", file, err)
	}
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("migrations complete")
			return nil
		},
	}
}
