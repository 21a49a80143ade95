package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250201-000000",
		Description: "Subscription account scoping, tag pattern/bank-category stages, alert narrative",
		Up: []string{
			// Subscriptions are unique per (merchant, account_id), with a null
			// account treated as its own bucket — mirrors idx_tags_name_parent's
			// COALESCE(parent_id, 0) null-bucketing for the same reason.
			`DROP INDEX IF EXISTS idx_subscriptions_merchant_amount`,
			`ALTER TABLE subscriptions ADD COLUMN account_id INTEGER REFERENCES accounts(id) ON DELETE CASCADE`,
			`ALTER TABLE subscriptions ADD COLUMN user_acknowledged INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE subscriptions ADD COLUMN cancelled_at TEXT`,
			`ALTER TABLE subscriptions ADD COLUMN cancelled_monthly_amount REAL`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_merchant_account ON subscriptions(merchant, COALESCE(account_id, 0))`,

			// Pattern stage: tags can self-describe a set of matching
			// description substrings without a standalone rule row.
			`ALTER TABLE tags ADD COLUMN auto_patterns TEXT`,

			// Rule stage: a rule's pattern can be matched three ways, not just
			// substring containment.
			`ALTER TABLE tag_rules ADD COLUMN pattern_type TEXT NOT NULL DEFAULT 'contains'`,
			`CREATE INDEX IF NOT EXISTS idx_tag_rules_priority ON tag_rules(priority DESC, id ASC)`,

			// Bank category stage: an import can carry the bank's own category
			// string for a transaction, translated to a tag path.
			`ALTER TABLE transactions ADD COLUMN bank_category TEXT`,

			// Duplicate-cluster and price-increase alerts carry an AI-authored
			// narrative distinct from the factual message.
			`ALTER TABLE alerts ADD COLUMN ai_analysis TEXT`,
		},
	})
}
