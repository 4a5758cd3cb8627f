package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL CHECK (type IN ('direct','group','pod','ai')),
            name TEXT NOT NULL DEFAULT '',
            participants TEXT[] NOT NULL,
            created_by TEXT NOT NULL,
            pod_id TEXT,
            last_message_id TEXT,
            last_activity_at TIMESTAMPTZ,
            message_count BIGINT NOT NULL DEFAULT 0,
            active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS rooms_direct_pair_idx ON rooms (participants) WHERE type = 'direct';`,
	`CREATE INDEX IF NOT EXISTS rooms_participants_idx ON rooms USING GIN (participants);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            seq BIGSERIAL,
            room_id TEXT NOT NULL REFERENCES rooms(id),
            sender_id TEXT NOT NULL,
            content TEXT NOT NULL,
            type TEXT NOT NULL DEFAULT 'text',
            reply_to TEXT,
            attachments JSONB NOT NULL DEFAULT '[]',
            mentions TEXT[] NOT NULL DEFAULT '{}',
            ai_generated BOOLEAN NOT NULL DEFAULT FALSE,
            ai_model TEXT,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            read_by TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_room_created_idx ON messages (room_id, created_at DESC, seq DESC);`,
}

func runMigrations(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
