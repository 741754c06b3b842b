package schema

import (
	om "github.com/cevaris/ordered_map"
	h "github.com/payfraud/riskpipe/helper"
)

// Table describes a target table: ordered key columns and ordered non-key columns.
// Both maps are keyed by stream record field name with the table column name as the value,
// which is the shape the DML generators expect.
type Table struct {
	Schema    string
	Name      string
	KeyCols   *om.OrderedMap
	OtherCols *om.OrderedMap
}

// Analytical store tables.

// FctTransactions is the transaction fact table. Each row is one transaction in the
// sync window joined to its customer dimension.
func FctTransactions() Table {
	return Table{
		Schema:  "analytics",
		Name:    "fct_transactions",
		KeyCols: h.TokensToOrderedMap("txn_id:txn_id"),
		OtherCols: h.TokensToOrderedMap(
			"event_time:event_time," +
				"customer_id:customer_id," +
				"merchant_id:merchant_id," +
				"payment_method_id:payment_method_id," +
				"amount_cents:amount_cents," +
				"currency:currency," +
				"channel:channel," +
				"status:status," +
				"country:country," +
				"risk_tier:risk_tier"),
	}
}

// AggDailyMerchantKpis is the (day, merchant) rollup table.
func AggDailyMerchantKpis() Table {
	return Table{
		Schema:  "analytics",
		Name:    "agg_daily_merchant_kpis",
		KeyCols: h.TokensToOrderedMap("day:day,merchant_id:merchant_id"),
		OtherCols: h.TokensToOrderedMap(
			"gmv_cents:gmv_cents," +
				"net_revenue_cents:net_revenue_cents," +
				"refund_cents:refund_cents," +
				"chargeback_cents:chargeback_cents," +
				"txn_count:txn_count," +
				"failed_count:failed_count," +
				"high_risk_txn_count:high_risk_txn_count"),
	}
}

// Transactional store tables.

// Transactions is the OLTP transaction table written by the ingest command.
func Transactions() Table {
	return Table{
		Name:    "transactions",
		KeyCols: h.TokensToOrderedMap("txn_id:txn_id"),
		OtherCols: h.TokensToOrderedMap(
			"idempotency_key:idempotency_key," +
				"event_time:created_at," +
				"customer_id:customer_id," +
				"merchant_id:merchant_id," +
				"payment_method_id:payment_method_id," +
				"session_id:session_id," +
				"amount_cents:amount_cents," +
				"currency:currency," +
				"channel:channel," +
				"status:status," +
				"auth_code:auth_code," +
				"failure_reason:failure_reason"),
	}
}

// Alerts is the OLTP alert table written by the alert writer.
func Alerts() Table {
	return Table{
		Name:    "alerts",
		KeyCols: h.TokensToOrderedMap("#alertId:alert_id"),
		OtherCols: h.TokensToOrderedMap(
			"event_time:created_at," +
				"customer_id:customer_id," +
				"txn_id:txn_id," +
				"#ruleName:rule_name," +
				"#severity:severity," +
				"#score:score," +
				"#details:details"),
	}
}

// Disputes is the OLTP dispute table. Disputes arrive from the card networks on
// their own timeline, so the sync pipeline does not consume them; the metadata is
// here for ingest tooling and future fact tables.
func Disputes() Table {
	return Table{
		Name:    "disputes",
		KeyCols: h.TokensToOrderedMap("dispute_id:dispute_id"),
		OtherCols: h.TokensToOrderedMap(
			"txn_id:txn_id," +
				"event_time:created_at," +
				"reason_code:reason_code," +
				"amount_cents:amount_cents," +
				"status:status"),
	}
}

// Cases is the OLTP case table for escalated alerts.
func Cases() Table {
	return Table{
		Name:    "cases",
		KeyCols: h.TokensToOrderedMap("#caseId:case_id"),
		OtherCols: h.TokensToOrderedMap(
			"event_time:created_at," +
				"#alertId:alert_id," +
				"#caseStatus:status"),
	}
}

// FullName returns schema-qualified table name.
func (t Table) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// StagingName returns the name of the staging table used for atomic publish.
func (t Table) StagingName() string {
	return t.Name + "_staging"
}

// StagingFullName returns the schema-qualified staging table name.
func (t Table) StagingFullName() string {
	if t.Schema == "" {
		return t.StagingName()
	}
	return t.Schema + "." + t.StagingName()
}

// NumCols returns the total column count.
func (t Table) NumCols() int {
	return t.KeyCols.Len() + t.OtherCols.Len()
}
