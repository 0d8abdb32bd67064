package models

import "github.com/shopspring/decimal"

// Period is an inclusive range of calendar days, formatted YYYY-MM-DD
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ReportSummary represents income and expense statistics for a period
type ReportSummary struct {
	Period          Period          `json:"period"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	EndingBalance   decimal.Decimal `json:"ending_balance"`
	TotalIncome     decimal.Decimal `json:"total_income"`
	TotalExpense    decimal.Decimal `json:"total_expense"`
	NetFlow         decimal.Decimal `json:"net_flow"`
}
