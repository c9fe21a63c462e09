package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Brownie44l1/digit-api/internal/config"
	"github.com/Brownie44l1/digit-api/internal/handlers"
	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/recognizer"
	"github.com/Brownie44l1/digit-api/internal/telegram"
	"github.com/Brownie44l1/digit-api/internal/web"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// projectPath resolves p against the project root, so the server finds
// models/ when started from cmd/server as well as from the root.
func projectPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "server" {
		wd = filepath.Join(wd, "../..")
	}
	return filepath.Join(wd, p)
}

func main() {
	cfg := config.Load()

	opts := model.Options{
		ModelPath:    projectPath(cfg.ModelPath),
		MetadataPath: projectPath(cfg.ModelMetadataPath),
		LibraryPath:  cfg.OnnxRuntimeLibPath,
	}
	log.Printf("Loading model from: %s", opts.ModelPath)

	loader := model.NewLoader(model.ONNXOpener(opts))
	defer loader.Close()
	if _, err := loader.Get(); err != nil {
		// Keep serving: the page shows the failure and predictions report it.
		log.Printf("Model loading failed: %v", err)
	}

	page, err := web.NewPage()
	if err != nil {
		log.Fatalf("Failed to load page: %v", err)
	}

	rec := recognizer.New(loader, cfg.ThumbnailSize)
	handler := handlers.NewHandler(loader, rec, page, cfg.StrokeWidth)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handler.Index)
	mux.HandleFunc("/health", enableCORS(handler.Health))
	mux.HandleFunc("/predict", enableCORS(handler.Predict))
	mux.HandleFunc("/predict/image", enableCORS(handler.PredictFromImage))
	mux.HandleFunc("/predict/canvas", enableCORS(handler.PredictCanvas))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, rec)
		if err != nil {
			log.Printf("Telegram bot disabled: %v", err)
		} else {
			botDone := make(chan struct{})
			go func() {
				defer close(botDone)
				bot.Run(ctx)
			}()
			// Runs before loader.Close so the bot never predicts on a
			// released model.
			defer func() {
				stop()
				<-botDone
			}()
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("Endpoints:")
	log.Println("  GET  /               - Drawing page")
	log.Println("  GET  /health         - Health check")
	log.Println("  POST /predict        - Raw 784-value prediction")
	log.Println("  POST /predict/image  - Predict from image upload")
	log.Println("  POST /predict/canvas - Predict from canvas data URL or RGBA buffer")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}
