package services

import (
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

// Placeholder values for fields no extractor could populate. A record that
// keeps all three is considered pure noise and dropped; anything with at
// least one real field survives.
const (
	DefaultTitle    = "Imóvel sem título"
	DefaultPrice    = "Preço sob consulta"
	DefaultLocation = "Localização não informada"
)

const sqFtPerSquareMeter = 10.7639

// Normalizer converts heterogeneous raw extraction output (JSON objects with
// varying key names, HTML fragments) into the canonical Listing shape.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeItem converts a structured (JSON) item into a Listing. Each target
// field is resolved through the ordered candidate key paths in patterns.yaml,
// first present non-nil value wins. Returns nil only for an absent item; a
// minimally-populated record with placeholder defaults is still valid.
func (n *Normalizer) NormalizeItem(item map[string]any, sourceURL string) *models.Listing {
	if item == nil {
		return nil
	}

	listing := &models.Listing{
		Title:        stringField(item, "title", DefaultTitle),
		Price:        priceField(item),
		Location:     stringField(item, "location", DefaultLocation),
		Bedrooms:     intField(item, "bedrooms"),
		Bathrooms:    intField(item, "bathrooms"),
		AreaSqFt:     floatField(item, "area"),
		Description:  stringField(item, "description", ""),
		PropertyType: stringField(item, "propertyType", ""),
		AgentName:    stringField(item, "agentName", ""),
		AgentPhone:   stringField(item, "agentPhone", ""),
		Status:       normalizeStatus(stringField(item, "status", "")),
		ScrapedAt:    time.Now(),
	}

	listing.ImageURL = resolveURL(stringField(item, "image", ""), sourceURL)
	listing.ListingURL = resolveURL(stringField(item, "listingUrl", ""), sourceURL)
	if listing.ListingURL == "" {
		listing.ListingURL = sourceURL
	}

	if features := resolveKeyPaths(item, []string{"features", "caracteristicas", "amenities"}); features != nil {
		listing.Features = toStringSlice(features)
	}

	return listing
}

// NormalizeFragment converts a raw HTML card fragment into a Listing using
// the ordered regex extractor tables. Returns nil when none of title, price
// and location yielded anything beyond their placeholders.
func (n *Normalizer) NormalizeFragment(fragment, sourceURL string) *models.Listing {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}

	title := cleanText(extractFirst("title", fragment))
	price := cleanText(extractFirst("price", fragment))
	location := cleanText(extractFirst("location", fragment))

	if title == "" && price == "" && location == "" {
		n.logger.Debug("[normalizer] dropping noise fragment (%d bytes)", len(fragment))
		return nil
	}

	if title == "" {
		title = DefaultTitle
	}
	if price == "" {
		price = DefaultPrice
	}
	if location == "" {
		location = DefaultLocation
	}

	listing := &models.Listing{
		Title:      title,
		Price:      price,
		Location:   location,
		Bedrooms:   parseCount(extractFirst("bedrooms", fragment)),
		Bathrooms:  parseCount(extractFirst("bathrooms", fragment)),
		AreaSqFt:   squareMetersToSqFt(extractFirst("area", fragment)),
		ImageURL:   resolveURL(extractFirst("image", fragment), sourceURL),
		ListingURL: sourceURL,
		Status:     models.StatusActive,
		ScrapedAt:  time.Now(),
	}

	return listing
}

// stringField resolves a string field through its candidate key paths.
func stringField(item map[string]any, field, fallback string) string {
	val := resolveKeyPaths(item, tables.jsonKeys[field])
	if val == nil {
		return fallback
	}
	switch v := val.(type) {
	case string:
		if s := cleanText(v); s != "" {
			return s
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fallback
}

// priceField coerces the resolved price value into a display string: raw
// numbers become formatted BRL, strings pass through.
func priceField(item map[string]any) string {
	val := resolveKeyPaths(item, tables.jsonKeys["price"])
	switch v := val.(type) {
	case float64:
		return formatBRL(v)
	case int:
		return formatBRL(float64(v))
	case string:
		if s := cleanText(v); s != "" {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
				return formatBRL(f)
			}
			return s
		}
	}
	return DefaultPrice
}

func intField(item map[string]any, field string) int {
	val := resolveKeyPaths(item, tables.jsonKeys[field])
	switch v := val.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		return parseCount(v)
	}
	return 0
}

func floatField(item map[string]any, field string) float64 {
	val := resolveKeyPaths(item, tables.jsonKeys[field])
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// resolveKeyPaths walks the candidate paths in order and returns the first
// present, non-nil value. Dotted paths descend into nested objects; numeric
// segments index into arrays.
func resolveKeyPaths(item map[string]any, paths []string) any {
	for _, path := range paths {
		if val := resolveKeyPath(item, path); val != nil {
			return val
		}
	}
	return nil
}

func resolveKeyPath(item map[string]any, path string) any {
	var current any = item
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			val, ok := node[segment]
			if !ok || val == nil {
				return nil
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}

// formatBRL renders a raw numeric price as "R$ 1.234.567".
func formatBRL(value float64) string {
	whole := strconv.FormatInt(int64(value), 10)

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(digit)
	}
	return "R$ " + b.String()
}

// squareMetersToSqFt parses an area in m² and converts to square feet.
func squareMetersToSqFt(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	// Brazilian notation: "1.234,56" — strip thousands dots, comma is the
	// decimal separator.
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	m2, err := strconv.ParseFloat(raw, 64)
	if err != nil || m2 <= 0 {
		return 0
	}
	return m2 * sqFtPerSquareMeter
}

func parseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// resolveURL resolves raw against sourceURL when relative.
func resolveURL(raw, sourceURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	base, err := url.Parse(sourceURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func normalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sold", "vendido":
		return models.StatusSold
	case "pending", "pendente", "reservado":
		return models.StatusPending
	default:
		return models.StatusActive
	}
}

func toStringSlice(val any) []string {
	items, ok := val.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, cleanText(s))
		}
	}
	return out
}

// cleanText unescapes HTML entities, trims, and collapses whitespace.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
