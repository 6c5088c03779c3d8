package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

// The primary key includes time because TimescaleDB requires every unique
// index on a hypertable to contain the partitioning column.
const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	humidity DOUBLE PRECISION NOT NULL,
	pressure DOUBLE PRECISION NOT NULL,
	altitude DOUBLE PRECISION NOT NULL,
	uv_index DOUBLE PRECISION NOT NULL,
	precipitation DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (id, time)
);`

const createHypertableSQL = `SELECT create_hypertable(?::regclass, 'time', if_not_exists => TRUE, migrate_data => TRUE);`
