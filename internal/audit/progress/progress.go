// Package progress computes audit completion from checklist responses.
//
// This is the certification eligibility gate: issuance requires exactly 100%,
// with no waiver path. 99% blocks.
package progress

import (
	"certo/internal/audit/models"
)

// Report summarizes checklist completion.
type Report struct {
	Percentage int `json:"percentage"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`
}

// Evaluate counts non-pending responses and derives the completion
// percentage with half-up rounding. An empty checklist is 0%, not a
// division by zero.
func Evaluate(responses []models.ChecklistResponse) Report {
	total := len(responses)
	if total == 0 {
		return Report{}
	}
	completed := 0
	for _, r := range responses {
		if r.ComplianceStatus != models.CompliancePending {
			completed++
		}
	}
	// Integer half-up rounding; dividing first in floating point loses
	// exact halves (23/40 must read 58, not 57).
	percentage := (200*completed + total) / (2 * total)
	return Report{Percentage: percentage, Completed: completed, Total: total}
}

// CertificationReady reports whether the gate for issuance is open.
func (r Report) CertificationReady() bool {
	return r.Percentage == 100
}
