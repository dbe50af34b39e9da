package rules

// BuiltinRules returns the default detection rule set. Deployments can
// replace or extend these via configuration, but the IDs are stable and
// referenced by historical alerts.
func BuiltinRules() []Rule {
	return []Rule{
		{
			ID:         "R001",
			Name:       "HIGH_VALUE_TRANSFER",
			Expression: `is_high_value && (tx_type == "TRANSFER" || tx_type == "CASH_OUT")`,
			Reason:     "Transfer amount exceeds 200,000 threshold",
			Enabled:    true,
		},
		{
			ID:         "R002",
			Name:       "NEW_COUNTERPARTY",
			Expression: `dest_count >= 0 && dest_count <= 1 && (tx_type == "TRANSFER" || tx_type == "CASH_OUT")`,
			Reason:     "Destination account has no prior history",
			Enabled:    true,
		},
		{
			ID:         "R003",
			Name:       "VELOCITY_SPIKE",
			Expression: `velocity_count > 10`,
			Reason:     "Transaction count in 24h exceeds 10",
			Enabled:    true,
		},
		{
			ID:         "R004",
			Name:       "FLAGGED_BY_PROVIDER",
			Expression: `is_flagged`,
			Reason:     "Provider rule flagged the transaction at source",
			Enabled:    true,
		},
	}
}
