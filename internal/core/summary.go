package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact spending summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      Money
	ByCategory []CategoryAmount
}

// SumExpenses totals amounts and groups them by category in first-seen order.
func SumExpenses(expenses []Expense) (Money, []CategoryAmount) {
	var total Money
	idx := make(map[string]int)
	var by []CategoryAmount
	for _, e := range expenses {
		total = total.Add(e.Amount)
		i, ok := idx[e.Category]
		if !ok {
			i = len(by)
			idx[e.Category] = i
			by = append(by, CategoryAmount{Name: e.Category})
		}
		by[i].Amount = by[i].Amount.Add(e.Amount)
	}
	return total, by
}
