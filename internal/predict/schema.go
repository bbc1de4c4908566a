package predict

// Response schemas in the OpenAPI subset accepted by structured-output
// model APIs. Backends without schema support embed them in the prompt.

// ReceiptSchema describes the receipt extraction response.
var ReceiptSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"vendor": map[string]any{"type": "STRING"},
		"items": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"name":     map[string]any{"type": "STRING"},
					"quantity": map[string]any{"type": "NUMBER"},
					"cost":     map[string]any{"type": "NUMBER"},
					"vendor":   map[string]any{"type": "STRING"},
				},
				"required": []string{"name", "quantity", "cost"},
			},
		},
	},
	"required": []string{"items"},
}

// ForecastSchema describes the forecast and cart suggestion response.
var ForecastSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"forecasts": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"name":                map[string]any{"type": "STRING"},
					"predictedRunOutDate": map[string]any{"type": "STRING"},
				},
				"required": []string{"name", "predictedRunOutDate"},
			},
		},
		"suggestions": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"name":          map[string]any{"type": "STRING"},
					"quantityToBuy": map[string]any{"type": "NUMBER"},
					"estimatedCost": map[string]any{"type": "NUMBER"},
					"vendor":        map[string]any{"type": "STRING"},
					"reason":        map[string]any{"type": "STRING"},
				},
				"required": []string{"name", "quantityToBuy", "reason"},
			},
		},
	},
	"required": []string{"forecasts", "suggestions"},
}
