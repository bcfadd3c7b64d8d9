// Package export serializes a finished task's records into tabular
// formats. Pure read transforms: the caller hands in a snapshot, bytes
// come out.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"domainscout/research/internal/task"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a user-supplied format name, defaulting to CSV.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("export: unknown format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "csv"
}

var header = []string{"keyword", "domain", "creation_date", "age_days", "age_display", "status"}

// row renders one record; ages are evaluated at now.
func row(r task.Record, now time.Time) []string {
	created, ageDays := "", ""
	if !r.Created.IsZero() {
		created = r.Created.Format("2006-01-02 15:04:05")
	}
	if days, ok := r.AgeDays(now); ok {
		ageDays = strconv.Itoa(days)
	}
	return []string{r.Keyword, r.Domain, created, ageDays, r.AgeDisplay(now), string(r.Status)}
}

// Bytes renders the records in the requested format.
func Bytes(records []task.Record, f Format, now time.Time) ([]byte, error) {
	if f == FormatXLSX {
		return xlsxBytes(records, now)
	}
	return csvBytes(records, now)
}

func csvBytes(records []task.Record, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("export: csv header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(row(r, now)); err != nil {
			return nil, fmt.Errorf("export: csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

const sheet = "Domain Research"

func xlsxBytes(records []task.Record, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("export: new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("export: drop default sheet: %w", err)
	}

	for col, name := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, fmt.Errorf("export: header cell: %w", err)
		}
	}
	for i, r := range records {
		for col, val := range row(r, now) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("export: cell: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
