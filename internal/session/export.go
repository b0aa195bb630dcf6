package session

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportFormat selects the transcript encoding.
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// FormatForPath picks the format from a file extension, defaulting to YAML.
func FormatForPath(path string) ExportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

type transcriptDoc struct {
	ExportedAt  time.Time `json:"exportedAt" yaml:"exportedAt"`
	Account     string    `json:"account,omitempty" yaml:"account,omitempty"`
	DisplayName string    `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Balance     *int64    `json:"balance,omitempty" yaml:"balance,omitempty"`
	Messages    []Message `json:"messages" yaml:"messages"`
}

// ExportTranscript writes the visible transcript of snap. The PIN is never
// written; the account number is only included once the session is verified.
func ExportTranscript(w io.Writer, snap Snapshot, format ExportFormat, at time.Time) error {
	doc := transcriptDoc{
		ExportedAt: at.UTC(),
		Messages:   snap.Transcript,
	}
	if snap.Verified {
		doc.Account = snap.Credentials.AccountNumber
		doc.DisplayName = snap.DisplayName
	}
	if snap.HasBalance {
		bal := snap.Balance
		doc.Balance = &bal
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}
