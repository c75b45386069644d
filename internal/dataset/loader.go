// Package dataset loads customer records from flat delimited files.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/pricelab/internal/domain"
	"github.com/rs/zerolog"
)

// Required input columns. churn_rate is optional: the original model
// dataset carries it, synthetic extracts usually do not.
var requiredColumns = []string{
	"id", "region", "channel", "acquisition_cost", "arpu",
	"gross_margin", "tenure_months", "churned", "price_paid",
}

// Loader reads customer records from a CSV file
type Loader struct {
	log zerolog.Logger
}

// NewLoader creates a new dataset loader
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{log: log.With().Str("component", "dataset").Logger()}
}

// Load reads and parses the customer table at path.
// Structural problems (missing columns, unparseable cells) surface as
// a DataIntegrityError carrying the offending row identifiers; range
// validation of parsed values is the feature builder's job.
func (l *Loader) Load(path string) ([]domain.CustomerRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input table: %w", err)
	}
	defer f.Close()

	records, err := l.Parse(f)
	if err != nil {
		return nil, err
	}

	l.log.Info().Int("rows", len(records)).Str("path", path).Msg("Input table loaded")
	return records, nil
}

// Parse reads customer records from a CSV stream with a header row.
// Column order is free; lookup is by header name.
func (l *Loader) Parse(r io.Reader) ([]domain.CustomerRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.DataIntegrityError{
			Stage:  "dataset",
			RowIDs: []string{"header"},
			Reason: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}
	_, hasChurnRate := cols["churn_rate"]

	var records []domain.CustomerRecord
	var badRows []string
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		rec, parseErr := parseRow(row, cols, hasChurnRate)
		if parseErr != nil {
			id := cell(row, cols["id"])
			if id == "" {
				id = fmt.Sprintf("line %d", line)
			}
			l.log.Debug().Str("row", id).Err(parseErr).Msg("Unparseable row")
			badRows = append(badRows, id)
			continue
		}
		records = append(records, rec)
	}

	if len(badRows) > 0 {
		return nil, &domain.DataIntegrityError{
			Stage:  "dataset",
			RowIDs: badRows,
			Reason: "unparseable cells",
		}
	}

	return records, nil
}

func parseRow(row []string, cols map[string]int, hasChurnRate bool) (domain.CustomerRecord, error) {
	var rec domain.CustomerRecord

	rec.ID = cell(row, cols["id"])
	if rec.ID == "" {
		return rec, fmt.Errorf("empty id")
	}
	rec.Region = domain.Region(cell(row, cols["region"]))
	rec.Channel = domain.Channel(cell(row, cols["channel"]))

	var err error
	if rec.AcquisitionCost, err = parseFloat(row, cols, "acquisition_cost"); err != nil {
		return rec, err
	}
	if rec.ARPU, err = parseFloat(row, cols, "arpu"); err != nil {
		return rec, err
	}
	if rec.GrossMargin, err = parseFloat(row, cols, "gross_margin"); err != nil {
		return rec, err
	}
	if rec.PricePaid, err = parseFloat(row, cols, "price_paid"); err != nil {
		return rec, err
	}

	tenure, err := strconv.Atoi(cell(row, cols["tenure_months"]))
	if err != nil {
		return rec, fmt.Errorf("tenure_months: %w", err)
	}
	rec.TenureMonths = tenure

	churned, err := parseBool(cell(row, cols["churned"]))
	if err != nil {
		return rec, fmt.Errorf("churned: %w", err)
	}
	rec.Churned = churned

	rec.ChurnRate = domain.ChurnRateNotSupplied
	if hasChurnRate {
		if rec.ChurnRate, err = parseFloat(row, cols, "churn_rate"); err != nil {
			return rec, err
		}
	}

	return rec, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloat(row []string, cols map[string]int, name string) (float64, error) {
	v, err := strconv.ParseFloat(cell(row, cols[name]), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
