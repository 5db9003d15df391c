// Package alerts decides when a category budget warrants a notification and
// reports how each budget is tracking for the month.
package alerts

import (
	"fmt"
	"strings"

	"pisoheroes/internal/core"
)

// Decision is the outcome of evaluating one alert against its spend.
type Decision struct {
	Triggered bool
	Percent   float64
	Spend     core.Money
	Limit     core.Money
	Severity  core.Severity
}

// Evaluate compares spend against the alert's limit. An alert triggers once
// usage reaches its threshold; inactive alerts never trigger.
func Evaluate(a core.BudgetAlert, spend core.Money) Decision {
	d := Decision{
		Percent: core.Percent(spend, a.Limit),
		Spend:   spend,
		Limit:   a.Limit,
	}
	if !a.Active || a.Limit.Cents <= 0 {
		return d
	}
	if d.Percent >= float64(a.ThresholdPercent) {
		d.Triggered = true
		d.Severity = core.SeverityFor(d.Percent)
	}
	return d
}

// Remaining is what is left of the limit, never negative.
func (d Decision) Remaining() core.Money {
	if d.Spend.Cents >= d.Limit.Cents {
		return core.Money{}
	}
	return d.Limit.Sub(d.Spend)
}

// Title formats the notification headline, e.g. "🚨 Budget Alert: Food".
func Title(a core.BudgetAlert, d Decision) string {
	icon := d.Severity.Icon()
	if d.Severity == core.SeverityThreshold {
		icon = core.CategoryIcon(core.CategoryBudgetAlert)
	}
	return fmt.Sprintf("%s Budget Alert: %s", icon, a.Category)
}

// Message formats the notification body.
func Message(a core.BudgetAlert, d Decision) string {
	var b strings.Builder
	switch d.Severity {
	case core.SeverityThreshold:
		fmt.Fprintf(&b, "Budget threshold reached (%d%%)", a.ThresholdPercent)
	default:
		b.WriteString(d.Severity.Title())
	}
	fmt.Fprintf(&b, "\n\nYou've spent %s out of %s (%.1f%%).\n", d.Spend, d.Limit, d.Percent)
	if d.Percent >= core.ExceededPercent {
		b.WriteString("Budget has been exceeded!")
	} else {
		fmt.Fprintf(&b, "Remaining: %s", d.Remaining())
	}
	return b.String()
}
