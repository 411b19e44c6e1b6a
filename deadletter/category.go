package deadletter

import (
	"fmt"
	"strings"

	"github.com/marcelsud/webhook-pipeline/event"
)

// Category ranks how urgently a quarantined event needs triage
type Category int

const (
	CategoryLow Category = iota + 1
	CategoryNormal
	CategoryImportant
	CategoryCritical
)

// String returns the string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryLow:
		return "low"
	case CategoryNormal:
		return "normal"
	case CategoryImportant:
		return "important"
	case CategoryCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// NewCategory creates a Category from a string
func NewCategory(s string) Category {
	switch s {
	case "low":
		return CategoryLow
	case "normal":
		return CategoryNormal
	case "important":
		return CategoryImportant
	case "critical":
		return CategoryCritical
	default:
		return 0
	}
}

// Validate checks if the category is valid
func (c Category) Validate() error {
	if c < CategoryLow || c > CategoryCritical {
		return fmt.Errorf("invalid category: %d", c)
	}
	return nil
}

/* Classify derives the triage category from source name and event type.
 * This is a pure function and the category is immutable once assigned:
 * payment and security sources are critical, user actions important,
 * analytics and log sources low, everything else normal.
 */
func Classify(sourceName string, t event.Type) Category {
	name := strings.ToLower(sourceName)

	for _, marker := range []string{"payment", "stripe", "billing", "security", "auth"} {
		if strings.Contains(name, marker) {
			return CategoryCritical
		}
	}
	if t.Category() == event.CategoryPayment {
		return CategoryCritical
	}

	if t.IsUserAction() {
		return CategoryImportant
	}

	for _, marker := range []string{"analytics", "log", "metrics"} {
		if strings.Contains(name, marker) {
			return CategoryLow
		}
	}

	return CategoryNormal
}

/* alertThreshold is the active-event count at which a category alert fires:
 * the more critical the category, the earlier the escalation.
 */
func (c Category) alertThreshold() int {
	switch c {
	case CategoryCritical:
		return 1
	case CategoryImportant:
		return 5
	case CategoryNormal:
		return 20
	default:
		return 100
	}
}
