package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/genai"

	"github.com/vbonduro/restockr/internal/predict"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Predictor calls Gemini generateContent with a JSON response schema.
type Predictor struct {
	client         *genai.Client
	model          string
	receiptSchema  *genai.Schema
	forecastSchema *genai.Schema
}

// NewPredictor returns a Gemini-backed predictor. httpClient should carry the
// retrying transport; nil falls back to a plain client.
func NewPredictor(ctx context.Context, apiKey, model, baseURL string, httpClient *http.Client) (*Predictor, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	receiptSchema, err := toSchema(predict.ReceiptSchema)
	if err != nil {
		return nil, err
	}
	forecastSchema, err := toSchema(predict.ForecastSchema)
	if err != nil {
		return nil, err
	}

	return &Predictor{
		client:         client,
		model:          model,
		receiptSchema:  receiptSchema,
		forecastSchema: forecastSchema,
	}, nil
}

// toSchema converts a shared response schema into the SDK's typed form. The
// shared schemas already use the SDK's upper-case type names.
func toSchema(schema map[string]any) (*genai.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response schema: %w", err)
	}
	var out genai.Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to convert response schema: %w", err)
	}
	return &out, nil
}

func (p *Predictor) ExtractReceipt(ctx context.Context, r io.Reader, mimeType string) ([]predict.ReceiptLine, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt image: %w", err)
	}

	text, err := p.generate(ctx, p.receiptSchema,
		&genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
		&genai.Part{Text: predict.ReceiptPrompt},
	)
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

	text, err := p.generate(ctx, p.forecastSchema, &genai.Part{Text: prompt})
	if err != nil {
		return nil, err
	}
	return predict.DecodeForecast(text)
}

func (p *Predictor) generate(ctx context.Context, schema *genai.Schema, parts ...*genai.Part) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	return resp.Text(), nil
}
