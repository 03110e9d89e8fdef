package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/steamfetch/models"
)

// CSVWriter writes game details to CSV.
type CSVWriter struct {
	file       *os.File
	writer     *csv.Writer
	headerSize int64
	mu         sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"steam_id", "name", "developer", "publisher", "release_date", "genres", "is_free", "currency", "initial", "final", "discount_percent", "metacritic", "last_updated"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	return &CSVWriter{
		file:       f,
		writer:     writer,
		headerSize: info.Size(),
	}, nil
}

// Write appends details to the CSV output.
func (cw *CSVWriter) Write(details []models.GameDetail) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, d := range details {
		var currency, initial, final, discount, metacritic string
		if d.Price != nil {
			currency = d.Price.Currency
			initial = strconv.FormatFloat(d.Price.Initial, 'f', 2, 64)
			final = strconv.FormatFloat(d.Price.Final, 'f', 2, 64)
			discount = strconv.Itoa(d.Price.DiscountPercent)
		}
		if d.MetacriticScore != nil {
			metacritic = strconv.Itoa(*d.MetacriticScore)
		}
		var updated string
		if !d.LastUpdated.IsZero() {
			updated = d.LastUpdated.Format(time.RFC3339)
		}
		record := []string{
			d.SteamID,
			d.Name,
			d.Developer,
			d.Publisher,
			d.ReleaseDate,
			strings.Join(d.Genres, "|"),
			strconv.FormatBool(d.IsFree),
			currency,
			initial,
			final,
			discount,
			metacritic,
			updated,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= cw.headerSize {
		return fmt.Errorf("csv file has no rows besides the header")
	}
	return nil
}

// ExportCSV writes details to filename in one call.
func ExportCSV(filename string, details []models.GameDetail) error {
	cw, err := NewCSVWriter(filename)
	if err != nil {
		return err
	}
	if err := cw.Write(details); err != nil {
		cw.Close()
		return err
	}
	if err := cw.Validate(); err != nil {
		cw.Close()
		return err
	}
	return cw.Close()
}
