package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractImages(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		outcome  ExtractionOutcome
		strategy string
		urls     []string
	}{
		{
			name:     "top-level images",
			result:   `{"images":[{"url":"https://a/1.png"},{"url":"https://a/2.png"}]}`,
			outcome:  Extracted,
			strategy: "top-level images",
			urls:     []string{"https://a/1.png", "https://a/2.png"},
		},
		{
			name:     "nested data images",
			result:   `{"data":{"images":[{"url":"https://b/1.png"}]}}`,
			outcome:  Extracted,
			strategy: "data.images",
			urls:     []string{"https://b/1.png"},
		},
		{
			name:     "empty top level falls through to data",
			result:   `{"images":[],"data":{"images":[{"url":"https://c/1.png"}]}}`,
			outcome:  Extracted,
			strategy: "data.images",
			urls:     []string{"https://c/1.png"},
		},
		{
			name:     "top level wins over data",
			result:   `{"images":[{"url":"https://d/top.png"}],"data":{"images":[{"url":"https://d/nested.png"}]}}`,
			outcome:  Extracted,
			strategy: "top-level images",
			urls:     []string{"https://d/top.png"},
		},
		{
			name:    "only blank urls",
			result:  `{"images":[{"url":""},{"url":"  "}]}`,
			outcome: NoAssets,
		},
		{
			name:    "images of the wrong shape",
			result:  `{"images":"https://e/1.png"}`,
			outcome: NoAssets,
		},
		{
			name:    "not json",
			result:  `<html>`,
			outcome: NoAssets,
		},
		{
			name:    "no images at all",
			result:  `{"seed":42}`,
			outcome: NoAssets,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractImages([]byte(tt.result))
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.Equal(t, tt.urls, got.URLs)
		})
	}
}
