package core

import (
	"strings"
	"time"
)

// MonthLabelLayout renders budget month labels such as "October 2025".
const MonthLabelLayout = "January 2006"

// MonthLabel is the budget label of the calendar month containing t.
func MonthLabel(t time.Time) string {
	return t.Format(MonthLabelLayout)
}

// SameMonthLabel compares month labels ignoring case and surrounding spaces.
func SameMonthLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ParseMonthLabel validates a budget month label and returns the first day of that month.
func ParseMonthLabel(label string) (time.Time, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return time.Time{}, Validationf("parse month", "month is required")
	}
	// time.Parse month names are case sensitive; normalise to "October 2025".
	fields := strings.Fields(strings.ToLower(label))
	if len(fields) != 2 || fields[0] == "" {
		return time.Time{}, Validationf("parse month", "month %q must look like %q", label, "October 2025")
	}
	normalised := strings.ToUpper(fields[0][:1]) + fields[0][1:] + " " + fields[1]
	t, err := time.Parse(MonthLabelLayout, normalised)
	if err != nil {
		return time.Time{}, Validationf("parse month", "month %q must look like %q", label, "October 2025")
	}
	return t, nil
}

// CanonicalMonthLabel returns label in the "October 2025" form.
func CanonicalMonthLabel(label string) (string, error) {
	t, err := ParseMonthLabel(label)
	if err != nil {
		return "", err
	}
	return MonthLabel(t), nil
}

// MainCategory returns the top-level segment of a "Name: Sub" label.
func MainCategory(label string) string {
	main, _, _ := strings.Cut(label, ":")
	return strings.TrimSpace(main)
}

// CategoryLabel joins a category name and optional subcategory for display.
func CategoryLabel(name, subcategory string) string {
	if subcategory == "" {
		return name
	}
	return name + ": " + subcategory
}
