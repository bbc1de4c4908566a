package claude

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/restockr/internal/predict"
)

// Claude has no response schema parameter, so the schema is embedded in the
// system prompt instead.
const systemPrompt = "Respond with a single JSON object matching this schema and nothing else:\n%s"

type Predictor struct {
	client *anthropic.Client
	model  string
}

// NewPredictor returns a Claude-backed predictor. baseURL may be empty for the
// public API. httpClient should carry the retrying transport.
func NewPredictor(apiKey, model, baseURL string, httpClient *http.Client) *Predictor {
	opts := []anthropic.ClientOption{}
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(httpClient))
	}
	return &Predictor{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (p *Predictor) ExtractReceipt(ctx context.Context, r io.Reader, mimeType string) ([]predict.ReceiptLine, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt image: %w", err)
	}

	content := []anthropic.MessageContent{
		anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
			anthropic.MessagesContentSourceTypeBase64,
			normaliseMIME(mimeType),
			base64.StdEncoding.EncodeToString(imageData),
		)),
		anthropic.NewTextMessageContent(predict.ReceiptPrompt),
	}

	text, err := p.complete(ctx, predict.ReceiptSchema, content)
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

	text, err := p.complete(ctx, predict.ForecastSchema, []anthropic.MessageContent{
		anthropic.NewTextMessageContent(prompt),
	})
	if err != nil {
		return nil, err
	}
	return predict.DecodeForecast(text)
}

func (p *Predictor) complete(ctx context.Context, schema map[string]any, content []anthropic.MessageContent) (string, error) {
	rawSchema, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}

	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(p.model),
		System: fmt.Sprintf(systemPrompt, rawSchema),
		// A month of forecasts plus five suggestions stays well under this.
		MaxTokens: 2048,
		Messages: []anthropic.Message{{
			Role:    anthropic.RoleUser,
			Content: content,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}
	return resp.GetFirstContentText(), nil
}

// normaliseMIME maps browser MIME types to the values the Anthropic API accepts.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
