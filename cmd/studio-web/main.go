package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-photo-studio/internal/cli"
	"github.com/fpang/gemini-photo-studio/internal/gemini"
	"github.com/fpang/gemini-photo-studio/internal/logging"
	"github.com/fpang/gemini-photo-studio/internal/workflow"
)

// CLI flags
var (
	portFlag        int
	modelFlag       string
	downloadDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "studio-web",
	Short: "Local web API for AI photo editing",
	Long: `Studio Web starts a local web server that drives the photo editing
workflow: pick images, submit an editing instruction, browse the gallery of
edited results, and download a selection.

Examples:
  studio-web
  studio-web --port 9090
  studio-web --model gemini-3-pro-image-preview --download-dir ~/Pictures/edits`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", gemini.GetModelName(), "Gemini image model to use")
	rootCmd.Flags().StringVar(&downloadDirFlag, "download-dir", "", "Directory for downloaded results (default: current directory)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	// Validate API key at startup
	_, apiKey := cli.InitAPIKey()

	downloadDir := downloadDirFlag
	if downloadDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to determine working directory")
		}
		downloadDir = cwd
	}
	downloadDir = cli.ValidateAndResolveDirectory(downloadDir)

	srv := newServer(workflow.New(gemini.NewClient(apiKey, modelFlag), nil), downloadDir)

	mux := http.NewServeMux()
	srv.register(mux)

	// Wrap with logging and CORS for local dev
	handler := withLogging(withCORS(mux))

	addr := fmt.Sprintf(":%d", portFlag)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	log.Info().Int("port", portFlag).Str("model", modelFlag).Msg("Starting web server")
	fmt.Printf("\n  Photo Studio API: http://localhost:%d\n\n", portFlag)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow localhost origins
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
