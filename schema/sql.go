package schema

// SQL text used by the sync pipeline. The transactional store is Postgres so
// bind variables are positional $n.

// SyncWindowSql selects the windowed transaction snapshot joined to the customer
// dimension, plus any existing alert per transaction so scoring can skip rework.
// Bind args: $1 = window start (inclusive), $2 = window end (exclusive).
const SyncWindowSql = `select
  t.created_at as event_time,
  t.txn_id::text as txn_id,
  t.customer_id::text as customer_id,
  t.merchant_id::text as merchant_id,
  coalesce(t.payment_method_id::text, '') as payment_method_id,
  t.amount_cents,
  t.currency,
  t.channel,
  t.status,
  c.country,
  c.risk_tier,
  m.risk_tier as merchant_risk_tier,
  coalesce(a.alert_id::text, '') as existing_alert_id
from transactions t
join customers c on c.customer_id = t.customer_id
join merchants m on m.merchant_id = t.merchant_id
left join alerts a on a.txn_id = t.txn_id
where t.created_at >= $1
  and t.created_at < $2
order by t.created_at, t.txn_id`

// SyncWindowColumns is the column order produced by SyncWindowSql.
var SyncWindowColumns = []string{
	"event_time",
	"txn_id",
	"customer_id",
	"merchant_id",
	"payment_method_id",
	"amount_cents",
	"currency",
	"channel",
	"status",
	"country",
	"risk_tier",
	"merchant_risk_tier",
	"existing_alert_id",
}

// ClickHouse staging DDL for atomic replace-on-write. The staging table clones the
// target's engine and schema; EXCHANGE TABLES swaps staging and target atomically.

func CreateStagingSql(t Table) string {
	return "CREATE TABLE " + t.StagingFullName() + " AS " + t.FullName()
}

func ExchangeStagingSql(t Table) string {
	return "EXCHANGE TABLES " + t.StagingFullName() + " AND " + t.FullName()
}

func DropStagingSql(t Table) string {
	return "DROP TABLE IF EXISTS " + t.StagingFullName()
}

// Postgres publish-marker SQL for the delete-and-insert strategy. The marker row is
// created outside the write transaction; a leftover marker means a prior publish
// died mid-flight and the target state is suspect.

const CreatePublishMarkerTableSql = `create table if not exists analytics_publish_markers (
  table_name text primary key,
  created_at timestamptz not null default now()
)`

const InsertPublishMarkerSql = `insert into analytics_publish_markers (table_name) values ($1)`

const DeletePublishMarkerSql = `delete from analytics_publish_markers where table_name = $1`

// DeleteWindowSql removes fact rows in the publish window ahead of re-insert.
// Bind args: $1 = window start (inclusive), $2 = window end (exclusive).
func DeleteWindowSql(t Table, timeColumn string) string {
	return "delete from " + t.FullName() + " where " + timeColumn + " >= $1 and " + timeColumn + " < $2"
}
