package models

import "time"

// Listing status values as persisted and served to the UI.
const (
	StatusActive  = "active"
	StatusPending = "pending"
	StatusSold    = "sold"
)

// Credentials identify a DWV account. Supplied per authentication attempt,
// never stored beyond deriving a session-cache key.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is an authenticated context against the DWV app. Replaced whole,
// never partially updated.
type Session struct {
	CookieHeader string    `json:"-"`
	Identifier   string    `json:"identifier"`
	ExpiresAt    time.Time `json:"expiresAt"`
	IsValid      bool      `json:"isValid"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Listing is the canonical normalized record produced by the extraction
// pipeline. Immutable once normalized; storage assigns its own ID.
type Listing struct {
	Title        string    `json:"title"`
	Price        string    `json:"price"`
	Location     string    `json:"location"`
	Bedrooms     int       `json:"bedrooms,omitempty"`
	Bathrooms    int       `json:"bathrooms,omitempty"`
	AreaSqFt     float64   `json:"areaSqFt,omitempty"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	PropertyType string    `json:"propertyType,omitempty"`
	ListingURL   string    `json:"listingUrl"`
	ScrapedAt    time.Time `json:"scrapedAt"`
	Features     []string  `json:"features,omitempty"`
	AgentName    string    `json:"agentName,omitempty"`
	AgentPhone   string    `json:"agentPhone,omitempty"`
	Status       string    `json:"status"`
}

// AuthResult is the outcome of the authentication strategy chain.
type AuthResult struct {
	Success bool     `json:"success"`
	Session *Session `json:"session,omitempty"`
	Method  string   `json:"method,omitempty"`
	Message string   `json:"message,omitempty"`
}

// ExtractionResult is the unit of output of each extraction strategy and of
// the chain as a whole.
type ExtractionResult struct {
	Success  bool       `json:"success"`
	Listings []*Listing `json:"listings"`
	Source   string     `json:"source"`
	Message  string     `json:"message,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ProcessResult is the orchestrator's top-level report for one pipeline run.
type ProcessResult struct {
	Success           bool   `json:"success"`
	ListingsExtracted int    `json:"listingsExtracted"`
	ListingsSaved     int    `json:"listingsSaved"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

// InsightReport holds aggregates computed over the stored listings,
// served to the UI collaborator.
type InsightReport struct {
	TotalListings      int            `json:"totalListings"`
	ActiveListings     int            `json:"activeListings"`
	AveragePrice       float64        `json:"averagePrice"`
	MinPrice           float64        `json:"minPrice"`
	MaxPrice           float64        `json:"maxPrice"`
	MostExpensive      *Listing       `json:"mostExpensive,omitempty"`
	ListingsByLocation map[string]int `json:"listingsByLocation"`
	ListingsByType     map[string]int `json:"listingsByType"`
}

// RunMetadata records the outcome of the most recent pipeline run. Written by
// the orchestrator, read only by the UI collaborator.
type RunMetadata struct {
	LastRun   time.Time `json:"lastRun"`
	Extracted int       `json:"extracted"`
	Saved     int       `json:"saved"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}
