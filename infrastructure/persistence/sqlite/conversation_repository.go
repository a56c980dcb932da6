// Package sqlite stores conversations and knowledge-graph snapshots in SQLite
// through the ncruces/go-sqlite3 database/sql driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vdchat/domain/core/entities"
	"vdchat/domain/core/valueobjects"
	pkgerrors "vdchat/pkg/errors"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    transcript TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_created ON conversations(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS knowledge_graphs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    graph_data TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_graphs_conversation ON knowledge_graphs(conversation_id, created_at DESC);
`

// Open opens the database at dsn with foreign keys enforced and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// ConversationRepository implements ports.ConversationRepository
type ConversationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConversationRepository creates a repository over an opened database
func NewConversationRepository(db *sql.DB, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ConversationRepository) Create(ctx context.Context, userID, initialText string) (*entities.Conversation, error) {
	conv, err := entities.NewConversation(userID, initialText)
	if err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, transcript, created_at) VALUES (?, ?, ?)`,
		conv.UserID(), conv.Transcript(), conv.CreatedAt().UnixNano(),
	)
	if err != nil {
		return nil, pkgerrors.NewStorageError("create_conversation", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, pkgerrors.NewStorageError("create_conversation", err)
	}

	r.logger.Debug("Conversation created",
		zap.Int64("conversation_id", id),
		zap.String("user_id", userID),
	)

	return entities.ReconstructConversation(id, conv.UserID(), conv.Transcript(), conv.CreatedAt()), nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id int64) (*entities.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, transcript, created_at FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("conversation %d", id))
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("get_conversation", err)
	}
	return conv, nil
}

// AppendToTranscript performs the concatenation inside a single UPDATE so a
// missing id writes nothing and concurrent appends cannot lose text.
func (r *ConversationRepository) AppendToTranscript(ctx context.Context, id int64, text string) (*entities.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pkgerrors.NewStorageError("append_transcript", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE conversations SET transcript = transcript || ? WHERE id = ?`, "\n"+text, id)
	if err != nil {
		return nil, pkgerrors.NewStorageError("append_transcript", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, pkgerrors.NewStorageError("append_transcript", err)
	}
	if affected == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("conversation %d", id))
	}

	conv, err := scanConversation(tx.QueryRowContext(ctx,
		`SELECT id, user_id, transcript, created_at FROM conversations WHERE id = ?`, id))
	if err != nil {
		return nil, pkgerrors.NewStorageError("append_transcript", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, pkgerrors.NewStorageError("append_transcript", err)
	}
	return conv, nil
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, transcript, created_at FROM conversations
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list_conversations", err)
	}
	defer rows.Close()

	return collectConversations(rows, "list_conversations")
}

func (r *ConversationRepository) Search(ctx context.Context, userID, query string) ([]*entities.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, transcript, created_at FROM conversations
		 WHERE user_id = ? AND transcript LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC`, userID, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, pkgerrors.NewStorageError("search_conversations", err)
	}
	defer rows.Close()

	return collectConversations(rows, "search_conversations")
}

func (r *ConversationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return pkgerrors.NewStorageError("delete_conversation", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return pkgerrors.NewStorageError("delete_conversation", err)
	}
	if affected == 0 {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("conversation %d", id))
	}

	r.logger.Debug("Conversation deleted", zap.Int64("conversation_id", id))
	return nil
}

func (r *ConversationRepository) CreateSnapshot(ctx context.Context, conversationID int64, graph valueobjects.Graph) (*entities.KnowledgeGraphSnapshot, error) {
	data, err := json.Marshal(graph)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to encode graph").WithCause(err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pkgerrors.NewStorageError("create_snapshot", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("conversation %d", conversationID))
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("create_snapshot", err)
	}

	createdAt := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO knowledge_graphs (conversation_id, graph_data, created_at) VALUES (?, ?, ?)`,
		conversationID, string(data), createdAt.UnixNano())
	if err != nil {
		return nil, pkgerrors.NewStorageError("create_snapshot", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, pkgerrors.NewStorageError("create_snapshot", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, pkgerrors.NewStorageError("create_snapshot", err)
	}

	return entities.ReconstructSnapshot(id, conversationID, graph, createdAt), nil
}

func (r *ConversationRepository) ListSnapshots(ctx context.Context, conversationID int64) ([]*entities.KnowledgeGraphSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, graph_data, created_at FROM knowledge_graphs
		 WHERE conversation_id = ? ORDER BY created_at DESC, id DESC`, conversationID)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list_snapshots", err)
	}
	defer rows.Close()

	return collectSnapshots(rows, "list_snapshots")
}

func (r *ConversationRepository) ListSnapshotsByUser(ctx context.Context, userID string) ([]*entities.KnowledgeGraphSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT k.id, k.conversation_id, k.graph_data, k.created_at
		 FROM knowledge_graphs k JOIN conversations c ON c.id = k.conversation_id
		 WHERE c.user_id = ? ORDER BY k.created_at DESC, k.id DESC`, userID)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list_user_snapshots", err)
	}
	defer rows.Close()

	return collectSnapshots(rows, "list_user_snapshots")
}

func (r *ConversationRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return pkgerrors.NewStorageError("ping", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*entities.Conversation, error) {
	var (
		id         int64
		userID     string
		transcript string
		createdAt  int64
	)
	if err := row.Scan(&id, &userID, &transcript, &createdAt); err != nil {
		return nil, err
	}
	return entities.ReconstructConversation(id, userID, transcript, time.Unix(0, createdAt).UTC()), nil
}

func collectConversations(rows *sql.Rows, operation string) ([]*entities.Conversation, error) {
	conversations := []*entities.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, pkgerrors.NewStorageError(operation, err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStorageError(operation, err)
	}
	return conversations, nil
}

func collectSnapshots(rows *sql.Rows, operation string) ([]*entities.KnowledgeGraphSnapshot, error) {
	snapshots := []*entities.KnowledgeGraphSnapshot{}
	for rows.Next() {
		var (
			id             int64
			conversationID int64
			data           string
			createdAt      int64
		)
		if err := rows.Scan(&id, &conversationID, &data, &createdAt); err != nil {
			return nil, pkgerrors.NewStorageError(operation, err)
		}

		graph := valueobjects.EmptyGraph()
		if err := json.Unmarshal([]byte(data), &graph); err != nil {
			return nil, pkgerrors.NewStorageError(operation, fmt.Errorf("snapshot %d: %w", id, err))
		}
		snapshots = append(snapshots, entities.ReconstructSnapshot(id, conversationID, graph, time.Unix(0, createdAt).UTC()))
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStorageError(operation, err)
	}
	return snapshots, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
