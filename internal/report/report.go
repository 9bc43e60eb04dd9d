package report

import (
	"encoding/json"
	"os"

	"example.com/orcafile/internal/scan"
)

func SaveSummaryJSON(summary scan.Summary, out string) error {
	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSummaryJSON(path string) (scan.Summary, error) {
	var summary scan.Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return summary, err
	}
	err = json.Unmarshal(b, &summary)
	return summary, err
}
