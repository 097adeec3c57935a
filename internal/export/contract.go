package export

import (
	"fmt"
	"strings"
)

// ColumnType is the storage type of a contract column. Every non-text type
// is cast to text in the select list so all fetched values are strings.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Numeric
	Date
	Timestamp
)

// Column is one entry of a schema contract. Name is both the database
// column and the header label.
type Column struct {
	Name string
	Type ColumnType
}

// Contract is an ordered, fixed list of columns. The query builder and the
// header writer both read it, so the two cannot drift apart.
type Contract []Column

// Header returns the column names in order.
func (c Contract) Header() []string {
	out := make([]string, len(c))
	for i, col := range c {
		out[i] = col.Name
	}
	return out
}

// SelectList renders the select expressions, casting typed columns to text.
func (c Contract) SelectList() string {
	parts := make([]string, len(c))
	for i, col := range c {
		id := quoteIdent(col.Name)
		if col.Type == Text {
			parts[i] = id
			continue
		}
		parts[i] = fmt.Sprintf("CAST(%s AS TEXT) AS %s", id, id)
	}
	return strings.Join(parts, ", ")
}

// memoColumns returns memo_01 .. memo_n.
func memoColumns(n int) []Column {
	cols := make([]Column, n)
	for i := range cols {
		cols[i] = Column{Name: fmt.Sprintf("memo_%02d", i+1), Type: Text}
	}
	return cols
}

// JournalContract is the 54-column layout of the journal (GL) shards:
// party, period, document, account, amounts, audit columns and thirty
// free-text memo columns.
var JournalContract = append(Contract{
	{Name: "company_code", Type: Text},
	{Name: "company_name", Type: Text},
	{Name: "fiscal_year", Type: Integer},
	{Name: "fiscal_period", Type: Integer},
	{Name: "posting_date", Type: Date},
	{Name: "document_date", Type: Date},
	{Name: "document_no", Type: Text},
	{Name: "document_type", Type: Text},
	{Name: "line_no", Type: Integer},
	{Name: "account_code", Type: Text},
	{Name: "account_name", Type: Text},
	{Name: "counterparty_code", Type: Text},
	{Name: "counterparty_name", Type: Text},
	{Name: "department_code", Type: Text},
	{Name: "department_name", Type: Text},
	{Name: "project_code", Type: Text},
	{Name: "currency", Type: Text},
	{Name: "exchange_rate", Type: Numeric},
	{Name: "debit_amount", Type: Numeric},
	{Name: "credit_amount", Type: Numeric},
	{Name: "debit_amount_fc", Type: Numeric},
	{Name: "credit_amount_fc", Type: Numeric},
	{Name: "created_by", Type: Text},
	{Name: "created_at", Type: Timestamp},
}, memoColumns(30)...)

// BalanceContract is the 20-column layout of the balance (TB) shard.
var BalanceContract = Contract{
	{Name: "company_code", Type: Text},
	{Name: "company_name", Type: Text},
	{Name: "fiscal_year", Type: Integer},
	{Name: "fiscal_period", Type: Integer},
	{Name: "account_code", Type: Text},
	{Name: "account_name", Type: Text},
	{Name: "account_type", Type: Text},
	{Name: "currency", Type: Text},
	{Name: "opening_debit", Type: Numeric},
	{Name: "opening_credit", Type: Numeric},
	{Name: "period_debit", Type: Numeric},
	{Name: "period_credit", Type: Numeric},
	{Name: "closing_debit", Type: Numeric},
	{Name: "closing_credit", Type: Numeric},
	{Name: "opening_balance", Type: Numeric},
	{Name: "closing_balance", Type: Numeric},
	{Name: "opening_quantity", Type: Numeric},
	{Name: "period_in_quantity", Type: Numeric},
	{Name: "period_out_quantity", Type: Numeric},
	{Name: "closing_quantity", Type: Numeric},
}
