// ABOUTME: SQLite-backed warm-start cache using modernc.org/sqlite
// ABOUTME: Persists the last-known directory and recent messages for instant startup rendering

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/ripple/internal/api"
)

// Store persists directory and message snapshots between runs. Everything in
// it is a disposable copy of server state; the server is always authoritative
// and a fresh fetch overwrites the cached rows wholesale.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a cache store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("cache initialized", "path", path)
	return s, nil
}

// createSchema creates the cache tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			other_user_json TEXT NOT NULL,
			last_message_json TEXT,
			PRIMARY KEY (owner_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_owner_position
			ON conversations(owner_id, position);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_json TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the cache database
func (s *Store) Close() error {
	s.logger.Debug("closing cache")
	return s.db.Close()
}

// SaveConversations replaces the cached directory snapshot for one user.
// Position preserves the directory's recency ordering.
func (s *Store) SaveConversations(ctx context.Context, ownerID string, convs []api.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("clearing cached conversations: %w", err)
	}

	query := `
		INSERT INTO conversations (id, owner_id, position, other_user_json, last_message_json)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, conv := range convs {
		otherUserJSON, err := json.Marshal(conv.OtherUser)
		if err != nil {
			return fmt.Errorf("encoding other user: %w", err)
		}

		var lastMessageJSON sql.NullString
		if conv.LastMessage != nil {
			data, err := json.Marshal(conv.LastMessage)
			if err != nil {
				return fmt.Errorf("encoding last message: %w", err)
			}
			lastMessageJSON = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, query, conv.ID, ownerID, i, string(otherUserJSON), lastMessageJSON); err != nil {
			return fmt.Errorf("inserting conversation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversations: %w", err)
	}

	s.logger.Debug("cached conversations", "owner_id", ownerID, "count", len(convs))
	return nil
}

// Conversations returns the cached directory snapshot for one user in its
// saved order. An empty cache returns an empty slice, not an error.
func (s *Store) Conversations(ctx context.Context, ownerID string) ([]api.Conversation, error) {
	query := `
		SELECT id, other_user_json, last_message_json
		FROM conversations
		WHERE owner_id = ?
		ORDER BY position
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying cached conversations: %w", err)
	}
	defer rows.Close()

	var convs []api.Conversation
	for rows.Next() {
		var conv api.Conversation
		var otherUserJSON string
		var lastMessageJSON sql.NullString

		if err := rows.Scan(&conv.ID, &otherUserJSON, &lastMessageJSON); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}

		if err := json.Unmarshal([]byte(otherUserJSON), &conv.OtherUser); err != nil {
			return nil, fmt.Errorf("decoding other user: %w", err)
		}
		if lastMessageJSON.Valid {
			var last api.LastMessage
			if err := json.Unmarshal([]byte(lastMessageJSON.String), &last); err != nil {
				return nil, fmt.Errorf("decoding last message: %w", err)
			}
			conv.LastMessage = &last
		}

		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	return convs, nil
}

// SaveMessages replaces the cached history for one conversation.
func (s *Store) SaveMessages(ctx context.Context, conversationID string, msgs []api.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clearing cached messages: %w", err)
	}

	query := `
		INSERT INTO messages (id, conversation_id, sender_json, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, msg := range msgs {
		senderJSON, err := json.Marshal(msg.Sender)
		if err != nil {
			return fmt.Errorf("encoding sender: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			msg.ID,
			conversationID,
			string(senderJSON),
			msg.Text,
			msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.Debug("cached messages", "conversation_id", conversationID, "count", len(msgs))
	return nil
}

// Messages returns the cached history for one conversation, oldest first.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]api.Message, error) {
	query := `
		SELECT id, sender_json, text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying cached messages: %w", err)
	}
	defer rows.Close()

	var msgs []api.Message
	for rows.Next() {
		var msg api.Message
		var senderJSON, createdAtStr string

		if err := rows.Scan(&msg.ID, &senderJSON, &msg.Text, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		if err := json.Unmarshal([]byte(senderJSON), &msg.Sender); err != nil {
			return nil, fmt.Errorf("decoding sender: %w", err)
		}
		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		msg.ConversationID = conversationID

		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return msgs, nil
}

// Clear drops all cached rows, used on logout so the next user never sees
// another account's data.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clearing conversations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	s.logger.Debug("cache cleared")
	return nil
}
