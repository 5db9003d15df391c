package core

import (
	"strings"
	"unicode"
)

// SavingsCategory is the expense category used when money moves from the
// wallet into a savings goal.
const SavingsCategory = "Savings"

// ExpenseCategories lists the categories users can pick when logging an
// expense, in display order.
var ExpenseCategories = []string{
	"Food",
	"Transport",
	"Leisure",
	"Bills",
	"School Supplies",
	"Shopping",
	"Healthcare",
	"Entertainment",
	"Other",
}

// IsExpenseCategory reports whether c is a known expense category.
// The internal Savings category is accepted too.
func IsExpenseCategory(c string) bool {
	if c == SavingsCategory {
		return true
	}
	for _, known := range ExpenseCategories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizeCategory maps free-text alert categories onto the canonical
// spelling when they name a known category ("food", "FOOD stuff" -> "Food").
// Anything else is trimmed and title-cased.
func NormalizeCategory(input string) string {
	in := strings.Join(strings.Fields(input), " ")
	if in == "" {
		return ""
	}
	lower := strings.ToLower(in)
	for _, known := range ExpenseCategories {
		if strings.EqualFold(in, known) {
			return known
		}
	}
	for _, known := range ExpenseCategories {
		if known == "Other" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(known)) {
			return known
		}
	}
	return titleCase(in)
}

// SameCategory compares categories the way alerts match expenses.
func SameCategory(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// IncomeSource classifies where extra wallet money came from.
type IncomeSource string

const (
	SourceAllowance         IncomeSource = "allowance"
	SourceSalary            IncomeSource = "salary"
	SourceGift              IncomeSource = "gift"
	SourceFreelance         IncomeSource = "freelance"
	SourceSavingsWithdrawal IncomeSource = "savings_withdrawal"
	SourceOther             IncomeSource = "other"
)

// IncomeSources lists selectable sources in display order.
var IncomeSources = []IncomeSource{
	SourceAllowance,
	SourceSalary,
	SourceGift,
	SourceFreelance,
	SourceSavingsWithdrawal,
	SourceOther,
}

func (s IncomeSource) Valid() bool {
	for _, known := range IncomeSources {
		if s == known {
			return true
		}
	}
	return false
}

// Label is the human readable name of the source.
func (s IncomeSource) Label() string {
	switch s {
	case SourceAllowance:
		return "Allowance"
	case SourceSalary:
		return "Salary"
	case SourceGift:
		return "Gift"
	case SourceFreelance:
		return "Freelance"
	case SourceSavingsWithdrawal:
		return "Savings Withdrawal"
	case SourceOther:
		return "Other"
	}
	return string(s)
}
