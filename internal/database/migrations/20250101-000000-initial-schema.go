package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250101-000000",
		Description: "Initial schema",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				institution TEXT,
				type TEXT NOT NULL,
				currency TEXT NOT NULL DEFAULT 'USD',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS transactions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				date TEXT NOT NULL,
				description TEXT NOT NULL,
				merchant TEXT,
				amount REAL NOT NULL,
				currency TEXT NOT NULL DEFAULT 'USD',
				import_hash TEXT NOT NULL,
				excluded INTEGER NOT NULL DEFAULT 0,
				receipt_id INTEGER,
				normalized_name TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_import_hash ON transactions(account_id, import_hash)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(merchant)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id)`,

			`CREATE TABLE IF NOT EXISTS tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				parent_id INTEGER REFERENCES tags(id) ON DELETE SET NULL,
				color TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_parent ON tags(name, COALESCE(parent_id, 0))`,

			`CREATE TABLE IF NOT EXISTS tag_rules (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				pattern TEXT NOT NULL,
				match_field TEXT NOT NULL DEFAULT 'merchant',
				priority INTEGER NOT NULL DEFAULT 0,
				source TEXT NOT NULL DEFAULT 'user',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tag_rules_tag ON tag_rules(tag_id)`,

			`CREATE TABLE IF NOT EXISTS transaction_tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
				tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				confidence REAL NOT NULL DEFAULT 1.0,
				source TEXT NOT NULL DEFAULT 'user',
				created_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_transaction_tags_unique ON transaction_tags(transaction_id, tag_id)`,
			`CREATE INDEX IF NOT EXISTS idx_transaction_tags_tag ON transaction_tags(tag_id)`,

			`CREATE TABLE IF NOT EXISTS subscriptions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				merchant TEXT NOT NULL,
				amount REAL NOT NULL,
				frequency TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				first_seen TEXT NOT NULL,
				last_seen TEXT NOT NULL,
				last_used_at TEXT,
				acknowledged_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_merchant_amount ON subscriptions(merchant, amount, frequency)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status)`,

			`CREATE TABLE IF NOT EXISTS subscription_transactions (
				subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
				transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
				PRIMARY KEY (subscription_id, transaction_id)
			)`,

			`CREATE TABLE IF NOT EXISTS alerts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				type TEXT NOT NULL,
				subscription_id INTEGER REFERENCES subscriptions(id) ON DELETE CASCADE,
				message TEXT NOT NULL,
				spending_anomaly_data TEXT,
				dismissed INTEGER NOT NULL DEFAULT 0,
				dismissed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_dismissed ON alerts(dismissed)`,
			`CREATE INDEX IF NOT EXISTS idx_alerts_subscription ON alerts(subscription_id)`,

			`CREATE TABLE IF NOT EXISTS insight_findings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				insight_type TEXT NOT NULL,
				key TEXT NOT NULL,
				severity INTEGER NOT NULL,
				title TEXT NOT NULL,
				summary TEXT NOT NULL,
				detail TEXT,
				data_json TEXT,
				detected_at TEXT NOT NULL,
				expires_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_insight_findings_key ON insight_findings(insight_type, key)`,

			`CREATE TABLE IF NOT EXISTS user_feedback (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				target_type TEXT NOT NULL,
				target_id INTEGER NOT NULL,
				accepted INTEGER NOT NULL,
				correction TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_user_feedback_target ON user_feedback(target_type, target_id)`,

			`CREATE TABLE IF NOT EXISTS ollama_metrics (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_type TEXT NOT NULL,
				model TEXT NOT NULL,
				backend TEXT NOT NULL,
				duration_ms INTEGER NOT NULL,
				success INTEGER NOT NULL,
				error_message TEXT,
				prompt_tokens INTEGER NOT NULL DEFAULT 0,
				output_tokens INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ollama_metrics_task_created ON ollama_metrics(task_type, created_at)`,

			`CREATE TABLE IF NOT EXISTS receipts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				transaction_id INTEGER REFERENCES transactions(id) ON DELETE SET NULL,
				merchant TEXT NOT NULL,
				subtotal REAL NOT NULL DEFAULT 0,
				tax REAL NOT NULL DEFAULT 0,
				tip REAL NOT NULL DEFAULT 0,
				total REAL NOT NULL DEFAULT 0,
				purchased_at TEXT NOT NULL,
				raw_text TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_receipts_transaction ON receipts(transaction_id)`,
			`CREATE INDEX IF NOT EXISTS idx_receipts_purchased_at ON receipts(purchased_at)`,

			`CREATE TABLE IF NOT EXISTS merchant_tag_cache (
				merchant TEXT PRIMARY KEY,
				tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				confidence REAL NOT NULL DEFAULT 1.0,
				source TEXT NOT NULL DEFAULT 'ai',
				updated_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS merchant_normalization_cache (
				raw_description TEXT PRIMARY KEY,
				normalized_name TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS merchant_subscription_cache (
				merchant TEXT PRIMARY KEY,
				is_subscription INTEGER NOT NULL,
				source TEXT NOT NULL DEFAULT 'ai',
				updated_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS audit_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				user_email TEXT,
				action TEXT NOT NULL,
				entity_type TEXT,
				entity_id INTEGER,
				details TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp)`,
		},
	})
}
