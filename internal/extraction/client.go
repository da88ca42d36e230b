package extraction

import (
	"context"
	"fmt"

	"receipt_ingest_backend/platform/config"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const extractionPrompt = `You analyze a forwarded receipt or order confirmation email.
Decide whether it describes a purchase order and extract its data.
Respond with JSON only. Set isOrder=false for newsletters, shipping updates,
marketing, account notices, or anything that is not an order/receipt.
Confidence is your overall certainty in the extracted fields, 0 to 1.

EMAIL:
`

var resultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"isOrder":     {Type: genai.TypeBoolean},
		"supplier":    {Type: genai.TypeString},
		"orderDate":   {Type: genai.TypeString, Description: "YYYY-MM-DD when known"},
		"totalAmount": {Type: genai.TypeNumber},
		"confidence":  {Type: genai.TypeNumber},
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":       {Type: genai.TypeString},
					"quantity":   {Type: genai.TypeNumber},
					"unit":       {Type: genai.TypeString},
					"unitPrice":  {Type: genai.TypeNumber},
					"partNumber": {Type: genai.TypeString},
				},
				Required: []string{"name"},
			},
		},
	},
	Required: []string{"isOrder", "confidence", "items"},
}

// Client wraps the Gemini model behind a request rate cap. It is constructed
// once at process start and injected into the pipeline; there is no package
// level instance.
type Client struct {
	genai   *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewClient creates the extraction model client.
func NewClient(ctx context.Context, cfg config.ExtractionConfig) (*Client, error) {
	if cfg.GetGeminiAPIKey() == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	rpm := cfg.GetExtractionRequestsPerMinute()
	if rpm < 1 {
		rpm = 30
	}

	return &Client{
		genai:   client,
		model:   cfg.GetExtractionModel(),
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}, nil
}

// Extract runs the model over the given email text and returns the typed
// result. Rate-limit and availability errors from the model API surface as
// errors for the caller's transient classification; they are never guardrail
// failures.
func (c *Client) Extract(ctx context.Context, text string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model,
		genai.Text(extractionPrompt+text),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   resultSchema,
			Temperature:      genai.Ptr[float32](0),
		})
	if err != nil {
		return Result{}, fmt.Errorf("extraction model: %w", err)
	}

	return coerce([]byte(resp.Text())), nil
}
