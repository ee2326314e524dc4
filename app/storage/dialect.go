package storage

import (
	"strconv"
	"strings"
)

type dialect struct {
	driver string
	schema string
	rebind func(string) string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	schema: `
        CREATE TABLE IF NOT EXISTS program_code (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT NOT NULL DEFAULT '',
            created_at INTEGER NOT NULL
        );
        CREATE TABLE IF NOT EXISTS program_input (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            input_text TEXT NOT NULL,
            profile_id TEXT NOT NULL,
            iteration_id INTEGER NULL REFERENCES program_code (id),
            created_at INTEGER NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_program_input_iteration ON program_input (iteration_id);
        CREATE TABLE IF NOT EXISTS program_state (
            id INTEGER PRIMARY KEY,
            state TEXT NOT NULL,
            current_iteration INTEGER NULL REFERENCES program_code (id),
            updated_at INTEGER NOT NULL
        );
    `,
	rebind: func(q string) string { return q },
}

var postgresDialect = dialect{
	driver: "postgres",
	schema: `
        CREATE TABLE IF NOT EXISTS program_code (
            id BIGSERIAL PRIMARY KEY,
            code TEXT NOT NULL DEFAULT '',
            created_at BIGINT NOT NULL
        );
        CREATE TABLE IF NOT EXISTS program_input (
            id BIGSERIAL PRIMARY KEY,
            input_text TEXT NOT NULL,
            profile_id TEXT NOT NULL,
            iteration_id BIGINT NULL REFERENCES program_code (id),
            created_at BIGINT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_program_input_iteration ON program_input (iteration_id);
        CREATE TABLE IF NOT EXISTS program_state (
            id BIGINT PRIMARY KEY,
            state TEXT NOT NULL,
            current_iteration BIGINT NULL REFERENCES program_code (id),
            updated_at BIGINT NOT NULL
        );
    `,
	rebind: rebindDollar,
}

// rebindDollar rewrites ? placeholders into $1, $2, ...
func rebindDollar(q string) string {
	var sb strings.Builder
	sb.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
