// Package textnorm turns raw product name, description, and OCR text into
// normalized ProductMetadata: candidate batch numbers, drug names,
// manufacturer mentions, and expiry dates. Extraction is driven by ordered
// pattern tables so weights and patterns are unit-testable independently of
// control flow, and extendable through configuration rather than code.
package textnorm

import "regexp"

// BatchPattern is one rule of the batch-number extraction cascade. Rules are
// applied in order; Labelled rules capture the value in group 1, the rest
// match whole tokens.
type BatchPattern struct {
	Name     string
	Re       *regexp.Regexp
	Labelled bool
}

// DefaultBatchPatterns returns the standard extraction cascade, most
// specific first:
//
//  1. explicit "batch"/"lot"/"b.no" labels,
//  2. letter-led alphanumerics,
//  3. prefix-digits-suffix product codes,
//  4. generic mixed alphanumeric tokens as a last resort.
func DefaultBatchPatterns() []BatchPattern {
	return []BatchPattern{
		{
			Name:     "labelled_batch",
			Re:       regexp.MustCompile(`(?i)\b(?:batch(?:\s*(?:number|no))?|lot(?:\s*(?:number|no))?|b\.?\s?no)\s*[:#.\-]?\s*([A-Za-z0-9][A-Za-z0-9\-/]{1,14})`),
			Labelled: true,
		},
		{
			Name: "letter_led",
			Re:   regexp.MustCompile(`\b[A-Z]\d+[A-Z]?\d*[A-Z]?\b`),
		},
		{
			Name: "prefixed_code",
			Re:   regexp.MustCompile(`\b[A-Z]{1,3}\d{3,8}[A-Z]{0,3}\b`),
		},
		{
			Name: "generic_token",
			Re:   regexp.MustCompile(`\b[A-Z0-9]{3,10}\b`),
		},
	}
}

// manufacturerPhrases capture "manufactured by X" style attributions; the
// manufacturer name lands in group 1.
var manufacturerPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)manufactured\s+by[:\s]+([A-Za-z][A-Za-z0-9&.,'\- ]{2,60})`),
	regexp.MustCompile(`(?i)made\s+by[:\s]+([A-Za-z][A-Za-z0-9&.,'\- ]{2,60})`),
	regexp.MustCompile(`(?i)mfg\.?\s*(?:by)?[:\s]+([A-Za-z][A-Za-z0-9&.,'\- ]{2,60})`),
	regexp.MustCompile(`(?i)marketed\s+by[:\s]+([A-Za-z][A-Za-z0-9&.,'\- ]{2,60})`),
}

// expiryPatterns match the date formats commonly printed on pharmaceutical
// packaging, labelled or bare.
var expiryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:exp(?:iry|\.)?(?:\s*date)?)\s*[:\-]?\s*(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`),
	regexp.MustCompile(`(?i)\b(?:exp(?:iry|\.)?(?:\s*date)?)\s*[:\-]?\s*(\d{1,2}[/\-]\d{4})`),
	regexp.MustCompile(`(?i)\b(?:exp(?:iry|\.)?(?:\s*date)?)\s*[:\-]?\s*([A-Za-z]{3,9}\s+\d{4})`),
}

// DefaultDrugDictionary lists common generic drug names for contains-match
// detection. Deployments extend this list through configuration, not code.
func DefaultDrugDictionary() []string {
	return []string{
		"paracetamol", "acetaminophen", "ibuprofen", "aspirin",
		"amoxicillin", "ampicillin", "azithromycin", "ciprofloxacin",
		"metronidazole", "artemether", "lumefantrine", "artesunate",
		"chloroquine", "quinine", "levonorgestrel", "metformin",
		"amlodipine", "lisinopril", "omeprazole", "diclofenac",
		"chlorpheniramine", "dexamethasone", "prednisolone",
		"cotrimoxazole", "albendazole", "mebendazole", "folic acid",
		"vitamin c", "zinc", "oral rehydration",
	}
}

// DefaultManufacturerAllowList lists known manufacturer name substrings for
// mention detection, configuration-extendable.
func DefaultManufacturerAllowList() []string {
	return []string{
		"emzor", "fidson", "may & baker", "may and baker", "gsk",
		"glaxosmithkline", "pfizer", "sanofi", "novartis", "roche",
		"cipla", "ranbaxy", "sun pharma", "aurobindo", "mylan",
		"swiss pharma", "juhel", "orange drugs", "neimeth", "evans",
		"bond chemical", "dana pharma", "chi pharma",
	}
}
