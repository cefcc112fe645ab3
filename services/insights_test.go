package services

import (
	"testing"

	"dwv-scraper/models"
)

func sampleListings() []*models.Listing {
	return []*models.Listing{
		{Title: "Casa A", Price: "R$ 200.000", Location: "Curitiba", Status: models.StatusActive, PropertyType: "casa"},
		{Title: "Apto B", Price: "R$ 450.000", Location: "Curitiba", Status: models.StatusActive, PropertyType: "apartamento"},
		{Title: "Cobertura C", Price: "R$ 1.250.000", Location: "São Paulo", Status: models.StatusSold, PropertyType: "cobertura"},
		{Title: "Sala D", Price: DefaultPrice, Location: DefaultLocation, Status: models.StatusActive},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())

	if r.TotalListings != 4 {
		t.Errorf("TotalListings: got %d, want 4", r.TotalListings)
	}
	if r.ActiveListings != 3 {
		t.Errorf("ActiveListings: got %d, want 3", r.ActiveListings)
	}
	if r.ListingsByLocation["Curitiba"] != 2 {
		t.Errorf("Curitiba count: got %d, want 2", r.ListingsByLocation["Curitiba"])
	}
	if _, ok := r.ListingsByLocation[DefaultLocation]; ok {
		t.Error("placeholder location must not be counted")
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())

	if r.MinPrice != 200000 {
		t.Errorf("MinPrice: got %.2f, want 200000", r.MinPrice)
	}
	if r.MaxPrice != 1250000 {
		t.Errorf("MaxPrice: got %.2f, want 1250000", r.MaxPrice)
	}
	if r.MostExpensive == nil || r.MostExpensive.Title != "Cobertura C" {
		t.Errorf("MostExpensive: got %+v", r.MostExpensive)
	}
}

func TestParsePriceBRL(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"R$ 500.000", 500000},
		{"R$ 1.250.000", 1250000},
		{"R$ 3.500,50", 3500.50},
		{"R$ 980", 980},
		{DefaultPrice, 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ParsePriceBRL(tt.raw); got != tt.want {
			t.Errorf("ParsePriceBRL(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}
