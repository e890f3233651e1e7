package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				status VARCHAR(50) NOT NULL,
				rule JSONB NOT NULL,
				shared_flows JSONB,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);

			CREATE TABLE delay_records (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				step_id VARCHAR(255) NOT NULL,
				delay_type VARCHAR(50) NOT NULL,
				duration_ms BIGINT NOT NULL,
				scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				execute_at TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(50) NOT NULL,
				context JSONB NOT NULL,
				remaining JSONB,
				result JSONB,
				error_message TEXT,
				claimed_by VARCHAR(255),
				claimed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- The sweep query scans by due time and status; lookups go by
			-- execution.
			CREATE INDEX idx_delay_records_execute_at_status ON delay_records(execute_at, status);
			CREATE INDEX idx_delay_records_execution_id ON delay_records(execution_id);

			CREATE TABLE execution_watermarks (
				workflow_id VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(255) NOT NULL,
				last_execution_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, trigger_type)
			);

			CREATE TABLE execution_records (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(255) NOT NULL,
				trigger_id VARCHAR(255),
				user_id VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				result JSONB,
				error_message TEXT,
				steps JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_execution_records_workflow_status_created
				ON execution_records(workflow_id, status, created_at);

			CREATE TABLE trigger_entities (
				id VARCHAR(255) PRIMARY KEY,
				entity_type VARCHAR(255) NOT NULL,
				user_id VARCHAR(255),
				state VARCHAR(50),
				data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				processed_at TIMESTAMP WITH TIME ZONE,
				last_failed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_trigger_entities_type_created
				ON trigger_entities(entity_type, created_at)
				WHERE processed_at IS NULL;
		`,
	}
}
