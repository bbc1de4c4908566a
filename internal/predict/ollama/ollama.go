package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/vbonduro/restockr/internal/predict"
)

// Predictor runs predictions on a self-hosted Ollama model. The response
// schema is passed as Ollama's structured output format.
type Predictor struct {
	client         *api.Client
	model          string
	receiptFormat  json.RawMessage
	forecastFormat json.RawMessage
}

func NewPredictor(host, model string, httpClient *http.Client) (*Predictor, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	receiptFormat, err := json.Marshal(predict.ReceiptSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt schema: %w", err)
	}
	forecastFormat, err := json.Marshal(predict.ForecastSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode forecast schema: %w", err)
	}

	return &Predictor{
		client:         api.NewClient(base, httpClient),
		model:          model,
		receiptFormat:  receiptFormat,
		forecastFormat: forecastFormat,
	}, nil
}

func (p *Predictor) ExtractReceipt(ctx context.Context, r io.Reader, _ string) ([]predict.ReceiptLine, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt image: %w", err)
	}

	text, err := p.generate(ctx, &api.GenerateRequest{
		Model:  p.model,
		Prompt: predict.ReceiptPrompt,
		Images: []api.ImageData{imageData},
		Format: p.receiptFormat,
	})
	if err != nil {
		return nil, err
	}
	return predict.DecodeReceipt(text)
}

func (p *Predictor) Forecast(ctx context.Context, req *predict.ForecastRequest) (*predict.ForecastResult, error) {
	prompt, err := predict.BuildForecastPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := p.generate(ctx, &api.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Format: p.forecastFormat,
	})
	if err != nil {
		return nil, err
	}
	return predict.DecodeForecast(text)
}

func (p *Predictor) generate(ctx context.Context, req *api.GenerateRequest) (string, error) {
	stream := false
	req.Stream = &stream

	var text strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	return text.String(), nil
}
