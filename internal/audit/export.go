package audit

import (
	"bytes"
	"encoding/csv"
	"time"
)

// WriteCSV serialises timeline rows for download.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	header := []string{"Timestamp", "Actor", "Actor Type", "Action", "Category", "Resource Type", "Resource", "IP Address"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		resource := row.ResourceName
		if resource == "" {
			resource = row.ResourceID
		}
		record := []string{
			row.Timestamp.UTC().Format(time.RFC3339),
			row.ActorEmail,
			string(row.ActorType),
			row.ActionLabel,
			row.ActionCategory,
			row.ResourceType,
			resource,
			row.IPAddress,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
