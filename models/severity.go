package models

import "strings"

// SeverityLevel is the normalized severity scale used for issues and
// recommendation priorities.
type SeverityLevel string

const (
	SeverityCritical SeverityLevel = "critical"
	SeverityHigh     SeverityLevel = "high"
	SeverityMedium   SeverityLevel = "medium"
	SeverityLow      SeverityLevel = "low"
	SeverityInfo     SeverityLevel = "info"
)

// severityRank orders severities for sorting (higher = more severe).
var severityRank = map[SeverityLevel]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// Rank returns a sortable weight for the severity. Unknown values rank lowest.
func (s SeverityLevel) Rank() int {
	return severityRank[NormalizeSeverity(string(s))]
}

// NormalizeSeverity maps arbitrary scanner severity strings onto the
// SeverityLevel scale. Unrecognised values become "info".
func NormalizeSeverity(raw string) SeverityLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "crit":
		return SeverityCritical
	case "high", "error":
		return SeverityHigh
	case "medium", "med", "moderate", "warning":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	default:
		return SeverityInfo
	}
}
