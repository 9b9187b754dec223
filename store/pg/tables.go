package pg

func CreateUserTable() string {
	return `CREATE TABLE IF NOT EXISTS users
(
	id SERIAL NOT NULL PRIMARY KEY,
	email VARCHAR(200) NOT NULL UNIQUE CHECK (email ~ '^[A-Za-z0-9._%-]+@[A-Za-z0-9.-]+[.][A-Za-z]+$'),
	project_quota INTEGER NOT NULL DEFAULT 0 CHECK(project_quota >= 0)
);`
}

func CreateProjectTable() string {
	return `CREATE TABLE IF NOT EXISTS projects
(
	id SERIAL NOT NULL PRIMARY KEY,
	owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name VARCHAR(200) NOT NULL CHECK (name <> ''),
	description TEXT NOT NULL DEFAULT '',
	status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'in-work', 'done')),
	images TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
}

// Sub-tables carry no foreign key to projects: a failed create may leave a
// project without sub-rows and a delete leaves sub-rows behind, and the read
// path tolerates both.
func CreateContactTable() string {
	return `CREATE TABLE IF NOT EXISTS project_contacts
(
	project_id INTEGER NOT NULL PRIMARY KEY,
	owner_id INTEGER NOT NULL,
	name VARCHAR(200) NOT NULL DEFAULT '',
	email VARCHAR(200) NOT NULL,
	phone VARCHAR(50) NOT NULL DEFAULT '',
	address VARCHAR(500) NOT NULL DEFAULT ''
);`
}

func CreateFinancialsTable() string {
	return `CREATE TABLE IF NOT EXISTS project_financials
(
	project_id INTEGER NOT NULL PRIMARY KEY,
	owner_id INTEGER NOT NULL,
	expenses DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (expenses >= 0),
	profits DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (profits >= 0)
);`
}

func CreateStatusHistoryTable() string {
	return `CREATE TABLE IF NOT EXISTS project_status_history
(
	id SERIAL NOT NULL PRIMARY KEY,
	project_id INTEGER NOT NULL,
	owner_id INTEGER NOT NULL,
	status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'in-work', 'done')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
}

func CreateFinancialReportTable() string {
	return `CREATE TABLE IF NOT EXISTS project_financial_reports
(
	project_id INTEGER NOT NULL PRIMARY KEY,
	owner_id INTEGER NOT NULL,
	name VARCHAR(200) NOT NULL DEFAULT '',
	status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'in-work', 'done')),
	expenses DOUBLE PRECISION NOT NULL DEFAULT 0,
	profits DOUBLE PRECISION NOT NULL DEFAULT 0,
	net_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
}
