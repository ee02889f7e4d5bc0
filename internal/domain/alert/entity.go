// Package alert implements the regulatory-alert bounded context for the
// MedCheck-Engine. An Alert is a regulator-published notice about a recalled,
// counterfeit, or unsafe product. Alerts are created and updated by the
// external crawler/ingestion layer; the verification core reads them and
// never mutates them.
package alert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Severity enumeration
// ─────────────────────────────────────────────────────────────────────────────

// Severity grades how dangerous the alerted product is, as assigned by the
// regulator (or inferred by the crawler from the notice wording).
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// MarshalJSON serialises Severity as a JSON string.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON deserialises a JSON string into Severity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	for k, v := range severityNames {
		if v == str {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown severity: %s", str)
}

// ParseSeverity converts a string (case-insensitive) into a Severity.
// Unknown values map to SeverityMedium so that a crawler hiccup never
// silently downgrades an alert to LOW.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return SeverityLow
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Category enumeration
// ─────────────────────────────────────────────────────────────────────────────

// Category classifies the kind of regulatory notice.
type Category string

const (
	CategoryCounterfeit Category = "counterfeit"
	CategoryRecall      Category = "recall"
	CategorySafety      Category = "safety_alert"
	CategorySubstandard Category = "substandard"
	CategoryGeneral     Category = "general"
)

// Serious reports whether the category carries extra weight during candidate
// ranking (recalls and safety alerts).
func (c Category) Serious() bool {
	return c == CategoryRecall || c == CategorySafety
}

// ─────────────────────────────────────────────────────────────────────────────
// Alert entity
// ─────────────────────────────────────────────────────────────────────────────

// Alert is a single regulatory notice. Immutable from the verification
// core's point of view; the ingestion layer owns its lifecycle.
type Alert struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt"`
	URL          string    `json:"url"`
	Date         time.Time `json:"date"`
	BatchNumbers []string  `json:"batch_numbers"`
	ProductNames []string  `json:"product_names"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Severity     Severity  `json:"severity"`
	Category     Category  `json:"category"`
	Active       bool      `json:"active"`
}

// Validate checks the minimal integrity constraints an alert must satisfy
// before the matching core will consider it.
func (a *Alert) Validate() error {
	if a == nil {
		return errors.New(errors.ErrCodeValidation, "alert is nil")
	}
	if a.ID == "" {
		return errors.New(errors.ErrCodeValidation, "alert id is required")
	}
	if a.Title == "" {
		return errors.New(errors.ErrCodeValidation, "alert title is required").WithDetail("id=" + a.ID)
	}
	return nil
}

// FullText returns the concatenated searchable text of the alert: title,
// excerpt, product names, and manufacturer. Ranking and batch-in-prose
// matching run against this string.
func (a *Alert) FullText() string {
	var sb strings.Builder
	sb.WriteString(a.Title)
	if a.Excerpt != "" {
		sb.WriteByte(' ')
		sb.WriteString(a.Excerpt)
	}
	for _, p := range a.ProductNames {
		sb.WriteByte(' ')
		sb.WriteString(p)
	}
	if a.Manufacturer != "" {
		sb.WriteByte(' ')
		sb.WriteString(a.Manufacturer)
	}
	return sb.String()
}

// HasBatch reports whether batch appears in the alert's structured batch
// list (case-insensitive).
func (a *Alert) HasBatch(batch string) bool {
	if batch == "" {
		return false
	}
	for _, b := range a.BatchNumbers {
		if strings.EqualFold(b, batch) {
			return true
		}
	}
	return false
}
