package scanlog

// ListScanLogsQuery represents the supported ledger list filters
type ListScanLogsQuery struct {
	ActionPointID uint   `query:"action_point_id"`
	UserID        string `query:"user_id"`
	Result        string `query:"result"`
	From          string `query:"from"`
	To            string `query:"to"`
	Limit         int    `query:"limit"`
	Offset        int    `query:"offset"`
}

// DailyCount is one row of the daily scan summary grouped by action type
type DailyCount struct {
	Day        string `json:"day"`
	ActionType string `json:"action_type"`
	Total      int64  `json:"total"`
	Successes  int64  `json:"successes"`
}

// FailureCount is one row of the failure breakdown grouped by validation result
type FailureCount struct {
	Result string `json:"validation_result"`
	Total  int64  `json:"total"`
}

// SummaryResponse aggregates the dashboard queries over the ledger
type SummaryResponse struct {
	Days     []DailyCount   `json:"days"`
	Failures []FailureCount `json:"failures"`
}

// AnomalyReportResponse carries the detector's flags plus an optional
// generated digest
type AnomalyReportResponse struct {
	Flags  interface{} `json:"flags"`
	Digest string      `json:"digest,omitempty"`
}
