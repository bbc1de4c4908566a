package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/restockr/internal/backoff"
	"github.com/vbonduro/restockr/internal/config"
	"github.com/vbonduro/restockr/internal/predict"
	claudepredict "github.com/vbonduro/restockr/internal/predict/claude"
	geminipredict "github.com/vbonduro/restockr/internal/predict/gemini"
	ollamapredict "github.com/vbonduro/restockr/internal/predict/ollama"
	"github.com/vbonduro/restockr/internal/proxy"
	"github.com/vbonduro/restockr/internal/receiptstore"
	"github.com/vbonduro/restockr/internal/receiptstore/local"
	"github.com/vbonduro/restockr/internal/receiptstore/s3store"
)

func newPredictor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (predict.Predictor, error) {
	client := backoff.NewClient(cfg.RetryMaxAttempts, cfg.RetryBaseDelay, logger)

	switch cfg.PredictBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, fmt.Errorf("CLAUDE_API_KEY is required when PREDICT_BACKEND=claude")
		}
		logger.Info("using Claude prediction backend", "model", cfg.ClaudeModel)
		return claudepredict.NewPredictor(cfg.ClaudeAPIKey, cfg.ClaudeModel, "", client), nil
	case "ollama":
		logger.Info("using Ollama prediction backend", "host", cfg.OllamaHost, "model", cfg.OllamaModel)
		p, err := ollamapredict.NewPredictor(cfg.OllamaHost, cfg.OllamaModel, client)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gemini", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when PREDICT_BACKEND=gemini")
		}
		logger.Info("using Gemini prediction backend", "model", cfg.GeminiModel)
		p, err := geminipredict.NewPredictor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, client)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown PREDICT_BACKEND %q", cfg.PredictBackend)
	}
}

func newReceiptStore(ctx context.Context, cfg *config.Config) (receiptstore.ReceiptStore, error) {
	switch cfg.ReceiptBackend {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "local", "":
		return local.New(cfg.ReceiptLocalPath)
	default:
		return nil, fmt.Errorf("unknown RECEIPT_BACKEND %q", cfg.ReceiptBackend)
	}
}

// newGeminiProxy relays status codes verbatim, so it does not retry.
func newGeminiProxy(cfg *config.Config, logger *slog.Logger) http.Handler {
	return proxy.NewHandler(cfg.GeminiAPIKey, cfg.GeminiBaseURL, &http.Client{Timeout: 120 * time.Second}, logger)
}
