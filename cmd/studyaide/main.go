package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/studyaide/internal/audio"
	"github.com/pavelanni/studyaide/internal/conversation"
	"github.com/pavelanni/studyaide/internal/docs"
	"github.com/pavelanni/studyaide/internal/handler"
	appI18n "github.com/pavelanni/studyaide/internal/i18n"
	"github.com/pavelanni/studyaide/internal/llm"
	"github.com/pavelanni/studyaide/internal/model"
	"github.com/pavelanni/studyaide/internal/prompt"
	"github.com/pavelanni/studyaide/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studyaide",
		Short: "Guided academic assistant grounded in coursework documents",
	}

	serve := serveCmd()
	root.AddCommand(serve, importRosterCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `studyaide --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP assistant server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "studyaide.db", "SQLite database path")
	f.StringP("roster", "r", "", "Roster CSV to import at startup (optional)")
	f.String("docs-dir", "data", "Directory holding the coursework documents")
	f.String("ethics-file", "reforming_modernity.pdf", "Ethics document file name inside docs-dir")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty = api.openai.com)")
	f.String("llm-key", "", "API key for the LLM (or set STUDYAIDE_LLM_KEY)")
	f.String("llm-model", "gpt-3.5-turbo", "LLM model name")
	f.Int("max-tokens", 1500, "Maximum tokens per answer")
	f.Float32("temperature", 0.3, "LLM sampling temperature")
	f.Int("max-content-length", 15000, "Maximum characters of document text per prompt")
	f.Int("history-limit", 6, "Conversation exchanges kept in the prompt")
	f.StringP("lang", "l", "en", "Default response language (en, ar, fr, es)")
	f.String("voice", "alloy", "Default text-to-speech voice")
	f.Bool("tts", true, "Enable text-to-speech responses")
	f.Duration("ask-timeout", time.Minute, "Timeout for a single question")
	f.Bool("skip-llm-check", false, "Skip the LLM health check at startup")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-roster",
		Short: "Import a student roster CSV into the database",
		RunE:  runImportRoster,
	}
	f := cmd.Flags()
	f.String("db", "studyaide.db", "SQLite database path")
	f.StringP("roster", "r", "", "Roster CSV path (required)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("roster")

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

	v.SetEnvPrefix("STUDYAIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("studyaide")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/studyaide")
	v.AddConfigPath("/etc/studyaide")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Import the roster when one is given.
	if rosterPath := v.GetString("roster"); rosterPath != "" {
		count, err := db.ImportRosterFile(rosterPath)
		if err != nil {
			return fmt.Errorf("import roster: %w", err)
		}
		slog.Info("imported roster", "path", rosterPath, "documents", count)
	}
	students, err := db.StudentCount()
	if err != nil {
		return fmt.Errorf("count students: %w", err)
	}
	if students == 0 {
		return fmt.Errorf("no students in database: import a roster with --roster or import-roster")
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Create LLM client.
	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetInt("max-tokens"),
		float32(v.GetFloat64("temperature")),
	)
	if !v.GetBool("skip-llm-check") {
		if err := llmClient.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "model", v.GetString("llm-model"))
	}

	cfg := model.AppConfig{
		DocsDir:          v.GetString("docs-dir"),
		EthicsFile:       v.GetString("ethics-file"),
		MaxContentLength: v.GetInt("max-content-length"),
		HistoryLimit:     v.GetInt("history-limit"),
		DefaultLanguage:  lang,
		DefaultVoice:     v.GetString("voice"),
	}

	resolver := docs.NewResolver(cfg.DocsDir, cfg.MaxContentLength)
	composer := prompt.NewComposer(cfg.HistoryLimit)
	machine := conversation.NewMachine(db, resolver, composer, llmClient, cfg)

	var synth *audio.Synthesizer
	if v.GetBool("tts") {
		synth = audio.NewSynthesizer(llmClient.API(), cfg.DefaultVoice)
	}

	h := handler.New(machine, synth, v.GetDuration("ask-timeout"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	stats, err := db.Stats()
	if err != nil {
		return fmt.Errorf("roster stats: %w", err)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"lang", lang,
		"docs_dir", cfg.DocsDir,
		"students", stats.Students,
		"programmes", stats.Programmes,
		"modules", stats.Modules,
		"tts", synth != nil,
	)
	return http.ListenAndServe(addr, r)
}

func runImportRoster(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	count, err := db.ImportRosterFile(v.GetString("roster"))
	if err != nil {
		return fmt.Errorf("import roster: %w", err)
	}

	stats, err := db.Stats()
	if err != nil {
		return fmt.Errorf("roster stats: %w", err)
	}
	slog.Info("roster imported",
		"documents", count,
		"students", stats.Students,
		"programmes", stats.Programmes,
		"modules", stats.Modules,
	)
	return nil
}
