package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/harryandriyan/bilbul/internal/metrics"
)

const (
	defaultModel   = "gemini-2.0-flash"
	requestTimeout = 30 * time.Second

	// maxImageBytes caps how much we will download from a hosted image URL.
	maxImageBytes = 10 << 20
)

const extractPrompt = `You are an expert receipt data extractor.

You will receive a receipt image and you will extract the items, prices, and total amount from the receipt. For each item, extract also the quantity.

Return ONLY valid JSON in this exact format:
{
  "items": [{"name": "Item Name", "price": 0.00, "quantity": 1}],
  "totalAmount": 0.00
}

Important:
- "price" is the total price for all units of that line, as a number
- "quantity" is a whole number of units
- "totalAmount" is the final total printed on the receipt
- Do not include any text before or after the JSON`

const suggestPromptFormat = `You are an expert bill splitting assistant. Given the receipt data and the number of people, you will suggest a fair split of the bill.

Receipt Data: %s
Number of People: %d

Suggest Split:`

// Gemini implements Extractor and Suggester using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	http   *http.Client
}

// NewGemini creates a Gemini-backed AI client.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
		http:   &http.Client{Timeout: requestTimeout},
	}, nil
}

// ExtractReceipt sends the receipt image to Gemini and parses the JSON reply.
func (g *Gemini) ExtractReceipt(ctx context.Context, photoURL string) (*ExtractionOutput, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	imageData, format, err := g.loadImage(ctx, photoURL)
	if err != nil {
		return nil, err
	}

	parts := []genai.Part{
		genai.ImageData(format, imageData),
		genai.Text(extractPrompt),
	}

	text, err := g.generate(ctx, parts)
	if err != nil {
		return nil, err
	}

	out, err := parseExtractionJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing extraction response: %v", ErrExternalService, err)
	}
	return out, nil
}

// SuggestSplit asks Gemini for a free-text split suggestion.
func (g *Gemini) SuggestSplit(ctx context.Context, receiptData string, numberOfPeople int) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("suggest").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	prompt := fmt.Sprintf(suggestPromptFormat, receiptData, numberOfPeople)
	text, err := g.generate(ctx, []genai.Part{genai.Text(prompt)})
	if err != nil {
		return "", err
	}

	suggestion := parseSuggestionText(text)
	if suggestion == "" {
		return "", fmt.Errorf("%w: empty suggestion response", ErrExternalService)
	}
	return suggestion, nil
}

// Close closes the underlying Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// generate runs one content generation call and returns the concatenated text parts.
func (g *Gemini) generate(ctx context.Context, parts []genai.Part) (string, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("%w: generating content: %v", ErrExternalService, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no response from gemini", ErrExternalService)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// loadImage resolves a photo URL into raw bytes plus a genai format suffix.
// Data URLs are decoded inline; http(s) URLs are fetched with a size cap.
func (g *Gemini) loadImage(ctx context.Context, photoURL string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(photoURL, "data:"):
		return decodeDataURL(photoURL)
	case strings.HasPrefix(photoURL, "http://"), strings.HasPrefix(photoURL, "https://"):
		return g.fetchImage(ctx, photoURL)
	default:
		return nil, "", fmt.Errorf("unsupported photo url scheme")
	}
}

func (g *Gemini) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: building image request: %v", ErrExternalService, err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetching image: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: fetching image: status %d", ErrExternalService, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading image: %v", ErrExternalService, err)
	}

	return data, formatFromContentType(resp.Header.Get("Content-Type")), nil
}

// decodeDataURL decodes a data URL of the form data:image/png;base64,....
func decodeDataURL(dataURL string) ([]byte, string, error) {
	meta, encoded, found := strings.Cut(dataURL, ",")
	if !found {
		return nil, "", fmt.Errorf("malformed data url")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("data url must be base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decoding data url: %w", err)
	}

	contentType := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	return data, formatFromContentType(contentType), nil
}

// formatFromContentType maps a MIME type to the format suffix genai.ImageData
// expects (e.g. "image/png" -> "png").
func formatFromContentType(contentType string) string {
	contentType, _, _ = strings.Cut(contentType, ";")
	switch strings.TrimSpace(contentType) {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/webp":
		return "webp"
	case "image/heic":
		return "heic"
	default:
		return "png"
	}
}

// parseSuggestionText cleans up a suggestion reply. Models sometimes wrap the
// answer in a JSON object or a markdown fence; prefer the structured field
// when present, otherwise return the trimmed text.
func parseSuggestionText(text string) string {
	trimmed := stripMarkdownFences(text)

	var structured struct {
		SuggestedSplit string `json:"suggestedSplit"`
	}
	if err := json.Unmarshal([]byte(trimmed), &structured); err == nil && structured.SuggestedSplit != "" {
		return structured.SuggestedSplit
	}
	return trimmed
}
