package app

import (
	"fmt"

	"compliscore/internal/domain"
)

type advice struct {
	issue       string
	description string
	action      string
}

// Canned guidance for the categories the seeded bank ships with. Unknown
// categories fall back to generic text.
var adviceByCategory = map[string]advice{
	"Password Management": {
		issue:       "Weak password hygiene",
		description: "Responses indicate passwords are reused, shared, or rarely rotated.",
		action:      "Adopt a password manager and enable multi-factor authentication on critical accounts.",
	},
	"Phishing Awareness": {
		issue:       "Susceptibility to phishing",
		description: "Responses suggest suspicious emails and links are not reliably recognized.",
		action:      "Complete phishing-simulation training and verify sender addresses before clicking.",
	},
	"Data Protection": {
		issue:       "Unprotected sensitive data",
		description: "Responses indicate sensitive data is stored or shared without encryption.",
		action:      "Encrypt devices and shared files, and review data-retention practices.",
	},
	"Access Control": {
		issue:       "Over-broad access rights",
		description: "Responses suggest accounts keep permissions beyond what their role requires.",
		action:      "Apply least-privilege access and schedule periodic permission reviews.",
	},
	"Incident Response": {
		issue:       "No incident playbook",
		description: "Responses indicate security incidents would not be reported or handled consistently.",
		action:      "Document an incident-response plan and rehearse the reporting chain.",
	},
}

// Recommendations emits one suggestion per category scoring below the cutoff,
// in snapshot order. An empty result means every category is at or above the
// cutoff, which is the valid "no issues" state.
func Recommendations(snapshot []domain.CategoryStanding) []domain.Recommendation {
	var out []domain.Recommendation
	for _, standing := range snapshot {
		if standing.Percentage >= domain.RecommendationCutoff {
			continue
		}
		text, ok := adviceByCategory[standing.Category]
		if !ok {
			text = advice{
				issue:       fmt.Sprintf("%s needs attention", standing.Category),
				description: fmt.Sprintf("The %s score is below the recommended level.", standing.Category),
				action:      fmt.Sprintf("Review your %s practices and retake the assessment.", standing.Category),
			}
		}
		out = append(out, domain.Recommendation{
			Category:    standing.Category,
			Issue:       text.issue,
			Description: text.description,
			Action:      text.action,
			Priority:    domain.PriorityFor(standing.Percentage),
		})
	}
	return out
}
