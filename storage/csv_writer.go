package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"dwv-scraper/models"
)

// CSVWriter dumps normalized listings to a CSV file. Used by the run-once
// mode as a local inspection artifact alongside the database write.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at path, creating parent
// directories as needed, and writes the header row.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file: %w", err)
	}

	w := &CSVWriter{file: file, writer: csv.NewWriter(file)}
	header := []string{
		"title", "price", "location", "bedrooms", "bathrooms", "area_sqft",
		"property_type", "listing_url", "status", "scraped_at",
	}
	if err := w.writer.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	return w, nil
}

// Write appends one row per listing.
func (w *CSVWriter) Write(listings []*models.Listing) error {
	for _, l := range listings {
		row := []string{
			l.Title,
			l.Price,
			l.Location,
			strconv.Itoa(l.Bedrooms),
			strconv.Itoa(l.Bathrooms),
			strconv.FormatFloat(l.AreaSqFt, 'f', 2, 64),
			l.PropertyType,
			l.ListingURL,
			l.Status,
			l.ScrapedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes and closes the underlying file.
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
