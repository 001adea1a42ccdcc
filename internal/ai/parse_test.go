package ai

import (
	"testing"
)

func TestParseExtractionJSON(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantErr      bool
		validateFunc func(t *testing.T, out *ExtractionOutput)
	}{
		{
			name:  "plain json",
			input: `{"items": [{"name": "Coffee", "price": 10.0, "quantity": 2}], "totalAmount": 10.0}`,
			validateFunc: func(t *testing.T, out *ExtractionOutput) {
				if len(out.Items) != 1 || out.Items[0].Name != "Coffee" {
					t.Errorf("Items = %v, want one Coffee item", out.Items)
				}
				if out.TotalAmount != 10.0 {
					t.Errorf("TotalAmount = %v, want 10.0", out.TotalAmount)
				}
			},
		},
		{
			name: "json fenced with markdown",
			input: "```json\n" +
				`{"items": [{"name": "Cake", "price": 7.25, "quantity": 1}], "totalAmount": 7.25}` +
				"\n```",
			validateFunc: func(t *testing.T, out *ExtractionOutput) {
				if len(out.Items) != 1 || out.Items[0].Name != "Cake" {
					t.Errorf("Items = %v, want one Cake item", out.Items)
				}
			},
		},
		{
			name: "bare fence without language tag",
			input: "```\n" +
				`{"items": [{"name": "Juice", "price": 3.5, "quantity": 1}], "totalAmount": 3.5}` +
				"\n```",
			validateFunc: func(t *testing.T, out *ExtractionOutput) {
				if len(out.Items) != 1 || out.Items[0].Name != "Juice" {
					t.Errorf("Items = %v, want one Juice item", out.Items)
				}
			},
		},
		{
			name: "prose around the object",
			input: "Here is the extracted data:\n" +
				`{"items": [{"name": "Soup", "price": 8.0, "quantity": 1}], "totalAmount": 8.0}` +
				"\nLet me know if you need anything else.",
			validateFunc: func(t *testing.T, out *ExtractionOutput) {
				if len(out.Items) != 1 || out.Items[0].Name != "Soup" {
					t.Errorf("Items = %v, want one Soup item", out.Items)
				}
			},
		},
		{
			name:    "no json object",
			input:   "I could not read the receipt.",
			wantErr: true,
		},
		{
			name:    "braces in wrong order",
			input:   "} nothing useful {",
			wantErr: true,
		},
		{
			name:    "malformed json",
			input:   `{"items": [}`,
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseExtractionJSON(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseExtractionJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, out)
			}
		})
	}
}

func TestParseSuggestionText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text",
			input: "Split it evenly: $5.00 each.\n",
			want:  "Split it evenly: $5.00 each.",
		},
		{
			name:  "structured reply",
			input: `{"suggestedSplit": "Person 1 pays $7, Person 2 pays $3."}`,
			want:  "Person 1 pays $7, Person 2 pays $3.",
		},
		{
			name:  "fenced structured reply",
			input: "```json\n{\"suggestedSplit\": \"Each pays half.\"}\n```",
			want:  "Each pays half.",
		},
		{
			name:  "json without the expected field falls back to the text",
			input: `{"something": "else"}`,
			want:  `{"something": "else"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSuggestionText(tt.input); got != tt.want {
				t.Errorf("parseSuggestionText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantErr    bool
		wantData   string
		wantFormat string
	}{
		{
			name:       "png data url",
			input:      "data:image/png;base64,aGVsbG8=",
			wantData:   "hello",
			wantFormat: "png",
		},
		{
			name:       "jpeg data url",
			input:      "data:image/jpeg;base64,aGk=",
			wantData:   "hi",
			wantFormat: "jpeg",
		},
		{
			name:    "missing comma",
			input:   "data:image/png;base64",
			wantErr: true,
		},
		{
			name:    "not base64 encoded",
			input:   "data:image/png,rawbytes",
			wantErr: true,
		},
		{
			name:    "invalid base64 payload",
			input:   "data:image/png;base64,!!!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, format, err := decodeDataURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeDataURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if string(data) != tt.wantData {
				t.Errorf("data = %q, want %q", data, tt.wantData)
			}
			if format != tt.wantFormat {
				t.Errorf("format = %q, want %q", format, tt.wantFormat)
			}
		})
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "jpeg"},
		{"image/jpg", "jpeg"},
		{"image/png", "png"},
		{"image/webp", "webp"},
		{"image/heic", "heic"},
		{"image/jpeg; charset=binary", "jpeg"},
		{"application/octet-stream", "png"},
		{"", "png"},
	}

	for _, tt := range tests {
		if got := formatFromContentType(tt.contentType); got != tt.want {
			t.Errorf("formatFromContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}
