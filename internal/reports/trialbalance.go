// Package reports serves read-only aggregations over posted journals.
// Nothing here mutates state.
package reports

import "sort"

// CodeBalance is one specific code with aggregated posted movement.
type CodeBalance struct {
	GroupCode  string
	GroupTitle string
	Code       string
	Title      string
	Debit      float64
	Credit     float64
}

// Closing computes the net movement for the code.
func (c CodeBalance) Closing() float64 {
	return c.Debit - c.Credit
}

// TrialBalanceRow represents a specific code inside a group.
type TrialBalanceRow struct {
	Code    string
	Title   string
	Debit   float64
	Credit  float64
	Closing float64
}

// TrialBalanceGroup aggregates rows under one group code.
type TrialBalanceGroup struct {
	Code   string
	Title  string
	Rows   []TrialBalanceRow
	Debit  float64
	Credit float64
}

// TrialBalance is the grouped report.
type TrialBalance struct {
	Groups      []TrialBalanceGroup
	TotalDebit  float64
	TotalCredit float64
}

// BuildTrialBalance folds code balances into grouped trial balance data.
func BuildTrialBalance(balances []CodeBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, bal := range balances {
		grp, ok := groups[bal.GroupCode]
		if !ok {
			grp = &TrialBalanceGroup{Code: bal.GroupCode, Title: bal.GroupTitle}
			groups[bal.GroupCode] = grp
			keys = append(keys, bal.GroupCode)
		}
		row := TrialBalanceRow{
			Code:    bal.Code,
			Title:   bal.Title,
			Debit:   bal.Debit,
			Credit:  bal.Credit,
			Closing: bal.Closing(),
		}
		grp.Rows = append(grp.Rows, row)
		grp.Debit += row.Debit
		grp.Credit += row.Credit
	}

	sort.Strings(keys)
	result := TrialBalance{}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Rows, func(i, j int) bool {
			return grp.Rows[i].Code < grp.Rows[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit += grp.Debit
		result.TotalCredit += grp.Credit
	}
	return result
}
