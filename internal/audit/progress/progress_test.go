package progress

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"certo/internal/audit/models"
)

func responsesWith(statuses ...models.ComplianceStatus) []models.ChecklistResponse {
	out := make([]models.ChecklistResponse, len(statuses))
	for i, s := range statuses {
		out[i] = models.ChecklistResponse{Clause: fmt.Sprintf("%d.1", i+4), ComplianceStatus: s}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	t.Run("empty checklist is zero, not a division by zero", func(t *testing.T) {
		assert.Equal(t, Report{}, Evaluate(nil))
		assert.Equal(t, Report{}, Evaluate([]models.ChecklistResponse{}))
	})

	t.Run("mixed statuses count everything but pending", func(t *testing.T) {
		report := Evaluate(responsesWith(
			models.CompliancePending,
			models.CompliancePending,
			models.ComplianceCompliant,
			models.ComplianceCompliant,
			models.ComplianceNonCompliant,
		))
		assert.Equal(t, Report{Percentage: 60, Completed: 3, Total: 5}, report)
	})

	t.Run("non-compliant and observation still count as answered", func(t *testing.T) {
		report := Evaluate(responsesWith(
			models.ComplianceNonCompliant,
			models.ComplianceObservation,
			models.ComplianceNotApplicable,
		))
		assert.Equal(t, 100, report.Percentage)
		assert.True(t, report.CertificationReady())
	})

	t.Run("rounds half up", func(t *testing.T) {
		// 1 of 3 answered = 33.33 -> 33; 2 of 3 = 66.67 -> 67
		assert.Equal(t, 33, Evaluate(responsesWith(
			models.ComplianceCompliant, models.CompliancePending, models.CompliancePending,
		)).Percentage)
		assert.Equal(t, 67, Evaluate(responsesWith(
			models.ComplianceCompliant, models.ComplianceCompliant, models.CompliancePending,
		)).Percentage)

		// 23 of 40 is exactly 57.5 and must round up, which float division
		// before multiplication gets wrong
		statuses := make([]models.ComplianceStatus, 40)
		for i := range statuses {
			if i < 23 {
				statuses[i] = models.ComplianceCompliant
			} else {
				statuses[i] = models.CompliancePending
			}
		}
		assert.Equal(t, 58, Evaluate(responsesWith(statuses...)).Percentage)
	})
}

// Exhaustively checks percentage == round(100k/n) over every k for a range
// of checklist sizes, and that readiness only opens at exactly 100.
func TestEvaluateProperty(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for k := 0; k <= n; k++ {
			statuses := make([]models.ComplianceStatus, n)
			for i := range statuses {
				if i < k {
					statuses[i] = models.ComplianceCompliant
				} else {
					statuses[i] = models.CompliancePending
				}
			}
			report := Evaluate(responsesWith(statuses...))
			want := int(math.Floor(100*float64(k)/float64(n) + 0.5))
			assert.Equal(t, want, report.Percentage, "n=%d k=%d", n, k)
			assert.Equal(t, k, report.Completed)
			assert.Equal(t, n, report.Total)
			assert.Equal(t, report.Percentage == 100, report.CertificationReady())
		}
	}
}
