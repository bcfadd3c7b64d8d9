package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"domainscout/research/internal/task"
)

var exportNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func sampleRecords() []task.Record {
	return []task.Record{
		{
			Keyword: "vintage cameras",
			Domain:  "oldcam.com",
			Created: time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC),
			Status:  task.LookupOK,
		},
		{
			Keyword: "vintage cameras",
			Domain:  "gone.com",
			Status:  task.LookupNotFound,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatCSV, true},
		{"csv", FormatCSV, true},
		{"xlsx", FormatXLSX, true},
		{"excel", FormatXLSX, true},
		{"pdf", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.ok != (err == nil) || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestCSV(t *testing.T) {
	data, err := Bytes(sampleRecords(), FormatCSV, exportNow)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if got := strings.Join(rows[0], ","); got != "keyword,domain,creation_date,age_days,age_display,status" {
		t.Errorf("header = %q", got)
	}

	ok := rows[1]
	if ok[1] != "oldcam.com" || ok[2] != "2014-06-01 00:00:00" || ok[3] != "3653" || ok[5] != "ok" {
		t.Errorf("ok row = %v", ok)
	}

	// An undated record exports with its status but empty date columns.
	missing := rows[2]
	if missing[1] != "gone.com" || missing[2] != "" || missing[3] != "" || missing[5] != "not_found" {
		t.Errorf("not_found row = %v", missing)
	}
}

func TestXLSX(t *testing.T) {
	data, err := Bytes(sampleRecords(), FormatXLSX, exportNow)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer wb.Close()

	if got := wb.GetSheetList(); len(got) != 1 || got[0] != "Domain Research" {
		t.Fatalf("sheets = %v, want only Domain Research", got)
	}
	rows, err := wb.GetRows("Domain Research")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "keyword" || rows[1][1] != "oldcam.com" || rows[1][3] != "3653" {
		t.Errorf("workbook rows = %v", rows)
	}
}

func TestFormatMeta(t *testing.T) {
	if FormatCSV.ContentType() != "text/csv" || FormatCSV.Extension() != "csv" {
		t.Error("csv metadata wrong")
	}
	if FormatXLSX.Extension() != "xlsx" ||
		!strings.Contains(FormatXLSX.ContentType(), "spreadsheetml") {
		t.Error("xlsx metadata wrong")
	}
}
