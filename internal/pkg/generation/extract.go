package generation

import (
	"encoding/json"
	"strings"
)

type ExtractionOutcome string

const (
	Extracted ExtractionOutcome = "extracted"
	NoAssets  ExtractionOutcome = "no_assets"
)

// Extraction is the list of asset URLs found in a provider result.
type Extraction struct {
	Outcome  ExtractionOutcome
	Strategy string
	URLs     []string
}

type falImage struct {
	URL string `json:"url"`
}

type extractionStrategy struct {
	name string
	find func(doc map[string]json.RawMessage) []falImage
}

// extractionStrategies are tried in order; the first one yielding a URL wins.
var extractionStrategies = []extractionStrategy{
	{name: "top-level images", find: topLevelImages},
	{name: "data.images", find: nestedDataImages},
}

// ExtractImages pulls the output image URLs out of a fal.ai result document.
func ExtractImages(result []byte) Extraction {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(result, &doc); err != nil {
		return Extraction{Outcome: NoAssets}
	}

	for _, s := range extractionStrategies {
		urls := nonEmptyURLs(s.find(doc))
		if len(urls) > 0 {
			return Extraction{Outcome: Extracted, Strategy: s.name, URLs: urls}
		}
	}
	return Extraction{Outcome: NoAssets}
}

func topLevelImages(doc map[string]json.RawMessage) []falImage {
	return decodeImages(doc["images"])
}

func nestedDataImages(doc map[string]json.RawMessage) []falImage {
	raw, ok := doc["data"]
	if !ok {
		return nil
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return decodeImages(data["images"])
}

func decodeImages(raw json.RawMessage) []falImage {
	if len(raw) == 0 {
		return nil
	}
	var images []falImage
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil
	}
	return images
}

func nonEmptyURLs(images []falImage) []string {
	var urls []string
	for _, img := range images {
		if u := strings.TrimSpace(img.URL); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
