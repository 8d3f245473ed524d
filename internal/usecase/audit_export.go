package usecase

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devicehub/devicehub/internal/domain"
)

// ExportContentType is the MIME type of ExportCSV output
const ExportContentType = "text/csv; charset=utf-8"

// ExportHeader is the fixed column order of ExportCSV
var ExportHeader = []string{"Timestamp", "Action", "Performed By", "Target User", "IP Address", "Details"}

// ExportFilename names an export produced on day now
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("admin-logs-%s.csv", now.Format("2006-01-02"))
}

// ExportCSV writes entries as comma separated rows. Fields are not quoted; commas
// inside any field become semicolons so every row has exactly six fields.
func ExportCSV(w io.Writer, entries []domain.AuditLogEntry) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(ExportHeader, ",") + "\n"); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			csvField(e.Timestamp),
			csvField(e.Action),
			csvField(e.PerformedBy),
			csvField(e.TargetUserID),
			csvField(e.IPAddress),
			csvField(compactDetails(e.Details)),
		}
		if _, err := bw.WriteString(strings.Join(row, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func compactDetails(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

var csvReplacer = strings.NewReplacer(",", ";", "\r\n", " ", "\n", " ", "\r", " ")

func csvField(s string) string {
	return csvReplacer.Replace(s)
}
