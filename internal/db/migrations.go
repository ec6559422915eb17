package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS vendors (
		id UUID PRIMARY KEY,
		company_name VARCHAR(255) NOT NULL,
		contact_name VARCHAR(255),
		email VARCHAR(255),
		phone VARCHAR(64),
		address VARCHAR(512),
		qualification_score NUMERIC(5,2),
		vendor_class VARCHAR(16),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS rfqs (
		id UUID PRIMARY KEY,
		rfq_number VARCHAR(64) NOT NULL,
		title VARCHAR(255),
		estimated_unit_price NUMERIC(18,2) NOT NULL,
		currency VARCHAR(3),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_rfq_number ON rfqs (rfq_number);`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY,
		contract_number VARCHAR(64) NOT NULL,
		vendor_id UUID NOT NULL REFERENCES vendors(id),
		rfq_id UUID REFERENCES rfqs(id),
		project VARCHAR(255),
		title VARCHAR(255),
		currency VARCHAR(3) NOT NULL,
		contract_value NUMERIC(18,2) NOT NULL CHECK (contract_value >= 0),
		status VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
		start_date DATE,
		end_date DATE,
		payment_terms VARCHAR(255),
		warranty_months INTEGER NOT NULL DEFAULT 0,
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contract_number ON contracts (contract_number);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_vendor_id ON contracts (vendor_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_project ON contracts (project);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts (status);`,
	`CREATE TABLE IF NOT EXISTS ipcs (
		id UUID PRIMARY KEY,
		contract_id UUID NOT NULL REFERENCES contracts(id),
		ipc_number VARCHAR(64) NOT NULL,
		sequence INTEGER NOT NULL,
		period_from DATE,
		period_to DATE,
		current_value NUMERIC(18,2) NOT NULL CHECK (current_value > 0),
		deductions NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (deductions >= 0 AND deductions <= current_value),
		cumulative_value NUMERIC(18,2) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'SUBMITTED',
		description VARCHAR(255),
		work_description TEXT,
		submitted_by UUID NOT NULL,
		submitted_by_name VARCHAR(255),
		approved_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ipc_contract_number ON ipcs (contract_id, ipc_number);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ipc_contract_sequence ON ipcs (contract_id, sequence);`,
	`CREATE INDEX IF NOT EXISTS idx_ipcs_status ON ipcs (status);`,
	`CREATE TABLE IF NOT EXISTS ipc_timeline (
		id UUID PRIMARY KEY,
		ipc_id UUID NOT NULL REFERENCES ipcs(id) ON DELETE RESTRICT,
		seq INTEGER NOT NULL,
		status VARCHAR(32) NOT NULL,
		actor_id UUID NOT NULL,
		actor_name VARCHAR(255),
		actor_role VARCHAR(32),
		notes TEXT,
		timestamp TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ipc_timeline_ipc_id ON ipc_timeline (ipc_id, timestamp);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ipc_timeline_seq ON ipc_timeline (ipc_id, seq);`,
	`CREATE OR REPLACE FUNCTION ipc_timeline_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'ipc_timeline is append-only';
	END
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_ipc_timeline_append_only') THEN
			CREATE TRIGGER trg_ipc_timeline_append_only
				BEFORE UPDATE OR DELETE ON ipc_timeline
				FOR EACH ROW EXECUTE FUNCTION ipc_timeline_append_only();
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS variation_orders (
		id UUID PRIMARY KEY,
		contract_id UUID NOT NULL REFERENCES contracts(id),
		vo_number VARCHAR(64) NOT NULL,
		description TEXT,
		cost_impact NUMERIC(18,2),
		time_impact_days INTEGER NOT NULL DEFAULT 0,
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_variation_orders_contract_id ON variation_orders (contract_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
