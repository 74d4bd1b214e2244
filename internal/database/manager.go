package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	dbconfig "quizroom/pkg/database"
	"quizroom/pkg/types"
)

// Manager implements interfaces.ChatStore on SQLite. All writes funnel
// through a single goroutine; reads run concurrently against the pool.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation is one queued write and its completion channel.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas and migrations, and
// starts the write loop.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	if dir := filepath.Dir(config.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop serializes all writes. A failed write is retried once after a
// short delay before the error is handed back to the caller.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-m.shutdown:
		return ErrManagerClosed
	}
}

// AppendMessage persists one chat message.
func (m *Manager) AppendMessage(ctx context.Context, msg *types.ChatMessage) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO messages (id, room_code, sender_id, sender_name, text, image_url, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			msg.ID,
			msg.RoomCode,
			msg.SenderID,
			msg.SenderName,
			msg.Text,
			msg.ImageURL,
			msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
}

// RecentMessages returns up to limit messages of a room in chronological
// order. The newest messages win when the room has more than limit.
func (m *Manager) RecentMessages(ctx context.Context, roomCode string, limit int) ([]*types.ChatMessage, error) {
	query := `
		SELECT id, room_code, sender_id, sender_name, text, image_url, timestamp
		FROM (
			SELECT id, room_code, sender_id, sender_name, text, image_url, timestamp
			FROM messages
			WHERE room_code = ?
			ORDER BY timestamp DESC
			LIMIT ?
		)
		ORDER BY timestamp ASC
	`

	rows, err := m.db.QueryContext(ctx, query, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query room history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		err := rows.Scan(
			&msg.ID,
			&msg.RoomCode,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Text,
			&msg.ImageURL,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

// PurgeRoomMessages deletes up to batchSize messages of a room and
// reports the number removed. Callers loop until it returns 0, which
// keeps any single delete short-lived.
func (m *Manager) PurgeRoomMessages(ctx context.Context, roomCode string, batchSize int) (int, error) {
	var deleted int64
	err := m.executeWrite(func(db *sql.DB) error {
		query := `
			DELETE FROM messages
			WHERE id IN (
				SELECT id FROM messages WHERE room_code = ? LIMIT ?
			)
		`
		res, err := db.ExecContext(ctx, query, roomCode, batchSize)
		if err != nil {
			return fmt.Errorf("failed to delete message batch: %w", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		return nil
	})
	return int(deleted), err
}

// LoadQuestions reads the whole question bank grouped by level.
func (m *Manager) LoadQuestions(ctx context.Context) (map[string][]*types.Question, error) {
	query := `SELECT id, level, content, difficulty FROM questions ORDER BY level, id`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	questions := make(map[string][]*types.Question)
	for rows.Next() {
		var q types.Question
		var level string
		if err := rows.Scan(&q.ID, &level, &q.Content, &q.Difficulty); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		questions[level] = append(questions[level], &q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question rows: %w", err)
	}

	return questions, nil
}

// SeedQuestions inserts questions for a level, replacing records with the
// same ID. Used by deployment tooling and tests to fill the bank.
func (m *Manager) SeedQuestions(ctx context.Context, level string, questions []*types.Question) error {
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		query := `
			INSERT OR REPLACE INTO questions (id, level, content, difficulty)
			VALUES (?, ?, ?, ?)
		`
		for _, q := range questions {
			if _, err := tx.ExecContext(ctx, query, q.ID, level, q.Content, q.Difficulty); err != nil {
				return fmt.Errorf("failed to insert question %s: %w", q.ID, err)
			}
		}

		return tx.Commit()
	})
}

// HealthCheck validates connectivity and a basic read.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := m.db.QueryContext(ctx, "SELECT COUNT(*) FROM messages LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB exposes the pool for schema validation.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close stops the write loop and closes the pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
