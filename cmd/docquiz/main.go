package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/docquiz/internal/handler"
	appI18n "github.com/pavelanni/docquiz/internal/i18n"
	"github.com/pavelanni/docquiz/internal/llm"
	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/quiz"
	"github.com/pavelanni/docquiz/internal/session"
	"github.com/pavelanni/docquiz/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docquiz",
		Short: "Turn a document into a four-question multiple-choice quiz",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), validateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `docquiz --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2-vision", "LLM model name")
	f.Duration("llm-timeout", 60*time.Second, "Deadline for one generation call")
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "docquiz.db", "SQLite database path")
	f.Bool("cache", true, "Serve repeated documents from the quiz cache")
	f.Int("max-file-bytes", quiz.DefaultMaxFileBytes, "Largest accepted document after decoding")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default language for remarks and titles (en, ru)")
	f.Int("max-generations", 1, "Generation calls allowed in flight")
	f.Duration("session-ttl", 2*time.Hour, "Idle time after which a quiz session is dropped")
	f.StringSlice("cors-origins", nil, "Allowed browser origins (repeatable)")
	f.Bool("dev", false, "Include error details in 500 responses")
	addLLMFlags(cmd)
	addStoreFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Generate a quiz for a local document and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.Bool("title", false, "Also generate a display title")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLLMFlags(cmd)
	addStoreFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a candidate quiz JSON file against the quiz rules",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached quizzes and the generation log as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "docquiz.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("DOCQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("docquiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/docquiz")
	v.AddConfigPath("/etc/docquiz")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// openPipeline opens the store and builds the generation service and LLM
// client from the bound configuration. The caller closes the store.
func openPipeline(v *viper.Viper) (*quiz.Service, *llm.Client, *store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	modelName := v.GetString("llm-model")
	if _, err := db.EnsureModel(modelName); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("check cache model: %w", err)
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), modelName)

	opts := []quiz.Option{
		quiz.WithRecorder(db),
		quiz.WithMaxFileBytes(v.GetInt("max-file-bytes")),
		quiz.WithModelName(modelName),
	}
	if v.GetBool("cache") {
		opts = append(opts, quiz.WithCache(db))
	}
	return quiz.NewService(llmClient, opts...), llmClient, db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	svc, llmClient, db, err := openPipeline(v)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = llmClient.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", llmClient.Model())

	maxFileBytes := v.GetInt("max-file-bytes")
	cfg := model.ServerConfig{
		MaxGenerations: v.GetInt("max-generations"),
		LLMTimeout:     v.GetDuration("llm-timeout"),
		MaxBodyBytes:   bodyLimit(maxFileBytes),
		Dev:            v.GetBool("dev"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewManager()
	go sweepSessions(ctx, sessions, v.GetDuration("session-ttl"))

	h := handler.New(svc, llmClient, sessions, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if origins := v.GetStringSlice("cors-origins"); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"model", llmClient.Model(),
			"llm_url", v.GetString("llm-url"),
			"lang", lang,
			"cache", v.GetBool("cache"),
			"max_generations", cfg.MaxGenerations,
			"llm_timeout", cfg.LLMTimeout,
			"max_file_bytes", maxFileBytes,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// bodyLimit is the request body size that fits a base64 document of
// maxFileBytes plus the JSON envelope.
func bodyLimit(maxFileBytes int) int64 {
	if maxFileBytes <= 0 {
		return 0
	}
	return int64(maxFileBytes)*4/3 + 64<<10
}

func sweepSessions(ctx context.Context, m *session.Manager, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ttl); n > 0 {
				slog.Info("expired quiz sessions removed", "count", n, "remaining", m.Len())
			}
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	fd, err := readFileDescriptor(args[0])
	if err != nil {
		return err
	}

	svc, llmClient, db, err := openPipeline(v)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	genCtx, cancel := context.WithTimeout(ctx, v.GetDuration("llm-timeout"))
	defer cancel()

	qs, err := svc.Generate(genCtx, []model.FileDescriptor{fd})
	if err != nil {
		var schemaErr *quiz.SchemaError
		if errors.As(err, &schemaErr) {
			for _, violation := range schemaErr.Violations {
				fmt.Fprintln(cmd.ErrOrStderr(), violation)
			}
		}
		return fmt.Errorf("generate quiz: %w", err)
	}

	var out any = qs
	if v.GetBool("title") {
		title, err := llmClient.GenerateTitle(genCtx, fd.Name)
		if err != nil {
			slog.Warn("title generation failed", "error", err)
			title = ""
		}
		out = struct {
			Title     string        `json:"title"`
			Questions model.QuizSet `json:"questions"`
		}{title, qs}
	}
	return writeOutput(cmd, v.GetString("output"), out)
}

func runValidate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	qs, err := quiz.Validate(data)
	if err != nil {
		var schemaErr *quiz.SchemaError
		if errors.As(err, &schemaErr) {
			for _, violation := range schemaErr.Violations {
				fmt.Fprintln(cmd.ErrOrStderr(), violation)
			}
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d questions\n", args[0], len(qs))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.Export()
	if err != nil {
		return fmt.Errorf("export cache: %w", err)
	}
	return writeOutput(cmd, v.GetString("output"), export)
}

func writeOutput(cmd *cobra.Command, outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
