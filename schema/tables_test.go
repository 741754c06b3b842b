package schema

import (
	"testing"
)

func TestTableNames(t *testing.T) {
	fct := FctTransactions()
	if fct.FullName() != "analytics.fct_transactions" {
		t.Fatal("unexpected fact table name: ", fct.FullName())
	}
	if fct.StagingFullName() != "analytics.fct_transactions_staging" {
		t.Fatal("unexpected staging name: ", fct.StagingFullName())
	}
	txns := Transactions()
	if txns.FullName() != "transactions" { // OLTP tables are not schema-qualified.
		t.Fatal("unexpected transactions table name: ", txns.FullName())
	}
	if txns.StagingFullName() != "transactions_staging" {
		t.Fatal("unexpected staging name: ", txns.StagingFullName())
	}
}

func TestTableColumnCounts(t *testing.T) {
	tests := []struct {
		table    Table
		expected int
	}{
		{FctTransactions(), 11},
		{AggDailyMerchantKpis(), 9},
		{Transactions(), 13},
		{Alerts(), 8},
		{Cases(), 4},
		{Disputes(), 6},
	}
	for _, tt := range tests {
		if got := tt.table.NumCols(); got != tt.expected {
			t.Fatal(tt.table.Name, ": expected ", tt.expected, " columns; got ", got)
		}
	}
}
