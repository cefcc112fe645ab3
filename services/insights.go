package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

var priceDigits = regexp.MustCompile(`[\d.,]+`)

// InsightService computes aggregates over the stored listings for the UI.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds the report. Listings whose price string carries no numeric
// value ("Preço sob consulta") are excluded from the price statistics.
func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByLocation: make(map[string]int),
		ListingsByType:     make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var (
		priced []float64
		total  float64
	)

	for _, l := range listings {
		if l.Status == models.StatusActive {
			report.ActiveListings++
		}
		if l.Location != "" && l.Location != DefaultLocation {
			report.ListingsByLocation[l.Location]++
		}
		if l.PropertyType != "" {
			report.ListingsByType[l.PropertyType]++
		}

		price := ParsePriceBRL(l.Price)
		if price <= 0 {
			continue
		}
		priced = append(priced, price)
		total += price

		if report.MostExpensive == nil || price > ParsePriceBRL(report.MostExpensive.Price) {
			report.MostExpensive = l
		}
	}

	if len(priced) > 0 {
		sort.Float64s(priced)
		report.MinPrice = priced[0]
		report.MaxPrice = priced[len(priced)-1]
		report.AveragePrice = round2(total / float64(len(priced)))
	}

	return report
}

// Print renders a compact console summary — used by the run-once mode.
func (s *InsightService) Print(r *models.InsightReport) {
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n  DWV SCRAPE INSIGHTS\n  %s\n", thin)
	fmt.Printf("  Total listings  : %d\n", r.TotalListings)
	fmt.Printf("  Active listings : %d\n", r.ActiveListings)
	if r.AveragePrice > 0 {
		fmt.Printf("  Average price   : R$ %.2f\n", r.AveragePrice)
		fmt.Printf("  Price range     : R$ %.2f – R$ %.2f\n", r.MinPrice, r.MaxPrice)
	} else {
		fmt.Printf("  No price data available\n")
	}

	if len(r.ListingsByLocation) > 0 {
		fmt.Printf("  %s\n", thin)
		type locCount struct {
			loc   string
			count int
		}
		var locs []locCount
		for loc, cnt := range r.ListingsByLocation {
			locs = append(locs, locCount{loc, cnt})
		}
		sort.Slice(locs, func(i, j int) bool { return locs[i].count > locs[j].count })
		for _, lc := range locs {
			fmt.Printf("  %-36s %d\n", truncate(lc.loc, 34), lc.count)
		}
	}
	fmt.Printf("  %s\n\n", thin)
}

// ParsePriceBRL extracts a numeric value from a Brazilian price string like
// "R$ 1.250.000" or "R$ 3.500,50". Returns 0 when no number is present.
func ParsePriceBRL(price string) float64 {
	match := priceDigits.FindString(price)
	if match == "" {
		return 0
	}

	// Dots are thousands separators, a trailing comma group is decimals.
	if idx := strings.LastIndex(match, ","); idx != -1 && len(match)-idx <= 3 {
		match = strings.ReplaceAll(match[:idx], ".", "") + "." + match[idx+1:]
	} else {
		match = strings.ReplaceAll(strings.ReplaceAll(match, ".", ""), ",", "")
	}

	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return val
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
