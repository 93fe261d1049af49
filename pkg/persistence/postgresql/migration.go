package postgresql

// migrations returns the versioned schema statements. IncomingWebhook and
// RecurringTask rows are removed by the database when their trigger is
// deleted; the reconciler relies on that cascade.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS providers (
				id UUID PRIMARY KEY,
				namespace_id TEXT NOT NULL,
				type TEXT NOT NULL,
				alias TEXT NOT NULL,
				encrypted_config TEXT NOT NULL DEFAULT '',
				UNIQUE (namespace_id, type, alias)
			);

			CREATE TABLE IF NOT EXISTS triggers (
				id UUID PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				provider_id UUID NOT NULL REFERENCES providers(id),
				trigger_type TEXT NOT NULL,
				input JSONB NOT NULL DEFAULT '{}',
				state JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_triggers_workflow ON triggers(workflow_id);
			CREATE INDEX IF NOT EXISTS idx_triggers_provider_type ON triggers(provider_id, trigger_type);

			CREATE TABLE IF NOT EXISTS incoming_webhooks (
				id UUID PRIMARY KEY,
				trigger_id UUID NOT NULL UNIQUE REFERENCES triggers(id) ON DELETE CASCADE,
				path TEXT NOT NULL UNIQUE,
				method TEXT NOT NULL DEFAULT 'POST'
			);

			CREATE TABLE IF NOT EXISTS recurring_tasks (
				id UUID PRIMARY KEY,
				trigger_id UUID NOT NULL UNIQUE REFERENCES triggers(id) ON DELETE CASCADE
			);

			CREATE TABLE IF NOT EXISTS workflow_deployments (
				id UUID PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				deployed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				trigger_definitions JSONB NOT NULL DEFAULT '[]'
			);

			CREATE INDEX IF NOT EXISTS idx_deployments_workflow_status
				ON workflow_deployments(workflow_id, status, deployed_at DESC);
		`,
	}
}
