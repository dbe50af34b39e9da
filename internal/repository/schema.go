package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    step INTEGER NOT NULL,
    type TEXT NOT NULL,
    amount REAL NOT NULL,
    name_orig TEXT NOT NULL,
    name_dest TEXT NOT NULL,
    old_balance_orig REAL,
    new_balance_orig REAL,
    old_balance_dest REAL,
    new_balance_dest REAL,
    is_fraud INTEGER NOT NULL DEFAULT 0,
    is_flagged_fraud INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_orig ON transactions(tenant_id, name_orig);
CREATE INDEX IF NOT EXISTS idx_transactions_dest ON transactions(tenant_id, name_dest);
CREATE INDEX IF NOT EXISTS idx_transactions_step ON transactions(tenant_id, step);
CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(tenant_id, type);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    alert_number TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    status TEXT NOT NULL,
    priority TEXT NOT NULL,
    score REAL NOT NULL,
    risk_band TEXT NOT NULL,
    reason_codes TEXT NOT NULL,
    feature_contributions TEXT,
    rule_triggers TEXT NOT NULL,
    assigned_to TEXT,
    notes TEXT,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_tenant ON alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_alerts_tx ON alerts(tenant_id, transaction_id);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_alerts_priority ON alerts(tenant_id, priority);
CREATE INDEX IF NOT EXISTS idx_alerts_risk_band ON alerts(tenant_id, risk_band);
CREATE INDEX IF NOT EXISTS idx_alerts_assigned ON alerts(tenant_id, assigned_to);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(tenant_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaAlerts,
	}
}
