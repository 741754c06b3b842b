package constants

// Pipeline

const (
	ChanSize                     = 20000
	StatsCaptureFrequencySeconds = 5
	EnvVarPrefix                 = "RP" // prefix for environment variable overrides
	EnvVarOltpDsn                = EnvVarPrefix + "_OLTP_DSN"
	EnvVarOlapDsn                = EnvVarPrefix + "_OLAP_DSN"
	TimeFormatWindow             = "2006-01-02T15:04:05Z"   // CLI format for --start/--end window bounds.
	TimeFormatDay                = "2006-01-02"             // aggregate grouping key day format.
	TimeFormatYearSecondsTZ      = "20060102T150405-0700"   // used when time values are stringified for comparison or logging.
)

// Transaction statuses as stored in the transactional store.
// refunded, chargeback and failed are terminal for this pipeline.

const (
	TxnStatusAuthorized = "authorized"
	TxnStatusCaptured   = "captured"
	TxnStatusFailed     = "failed"
	TxnStatusRefunded   = "refunded"
	TxnStatusChargeback = "chargeback"
)

// Risk tiers for customer and merchant dimensions.

const (
	RiskTierLow    = "low"
	RiskTierMedium = "medium"
	RiskTierHigh   = "high"
)

// Rule names. The order rules fire in is fixed by fraud.DefaultRules, not here.

const (
	RuleHighRiskCustomer = "high_risk_customer"
	RuleHighRiskMerchant = "high_risk_merchant"
	RuleLargeAmount      = "large_amount"
	RuleBadOutcome       = "bad_outcome"
)

// Alert severities.

const (
	SeverityNone   = ""
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Scoring and escalation defaults. All of these are overridable per run via
// fraud.Thresholds - never read these directly from scoring code.

const (
	DefaultMinAlertScore             = 0.45
	DefaultMediumSeverityScore       = 0.55
	DefaultHighSeverityScore         = 0.75
	DefaultLargeAmountCents          = int64(150000)
	DefaultCaseEscalationProbability = 0.7
	DefaultQuarantineMaxFraction     = 0.05
	DefaultWindowDays                = 60
	DefaultStoreTimeoutSeconds       = 300
	DefaultMaxStoreRetries           = 3
	DefaultRetryBackoffSeconds       = 2
)

// Field names used in stream records between pipeline steps.
// Names without a '#' prefix match the column aliases produced by the
// transactional-store reader SQL; '#' fields are added by pipeline steps.

const (
	FieldEventTime       = "event_time"
	FieldTxnId           = "txn_id"
	FieldIdempotencyKey  = "idempotency_key"
	FieldCustomerId      = "customer_id"
	FieldMerchantId      = "merchant_id"
	FieldPaymentMethodId = "payment_method_id"
	FieldSessionId       = "session_id"
	FieldAmountCents     = "amount_cents"
	FieldCurrency        = "currency"
	FieldChannel         = "channel"
	FieldStatus          = "status"
	FieldAuthCode        = "auth_code"
	FieldFailureReason   = "failure_reason"
	FieldCountry         = "country"
	FieldRiskTier        = "risk_tier"
	FieldMerchantTier    = "merchant_risk_tier"
	FieldExistingAlertId = "existing_alert_id"
	FieldScore           = "#score"
	FieldRulesFired      = "#rulesFired"
	FieldSeverity        = "#severity"
	FieldAlertId         = "#alertId"
	FieldRuleName        = "#ruleName"
	FieldDetails         = "#details"
	FieldCaseId          = "#caseId"
	FieldCaseStatus      = "#caseStatus"
	FieldCommitSequence  = "#commitSequence"
)

// Case statuses.

const (
	CaseStatusOpen = "open"
)

// Connection types and logical connection names.

const (
	ConnectionTypePostgres   = "postgres"
	ConnectionTypeClickhouse = "clickhouse"
	ConnectionTypeMock       = "mock"
	ConnectionNameOltp       = "oltp"
	ConnectionNameOlap       = "olap"
)

// Commit batching for store writers.

const (
	WriterBatchSizeDefault       = 1000
	WriterTxtBatchNumRowsDefault = 100
)
