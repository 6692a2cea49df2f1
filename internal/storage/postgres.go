package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/support-monitor/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}
	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL", zap.String("host", config.Host), zap.String("dbname", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecordMessage(ctx context.Context, msg models.InboundMessage) error {
	guildID := ""
	if msg.Guild != nil {
		guildID = msg.Guild.ID
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO channel_messages (message_id, guild_id, channel_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, msg.ID, guildID, msg.Channel.ID, msg.Author.ID, msg.Content, createdAt); err != nil {
		return fmt.Errorf("error recording message: %w", err)
	}
	return s.RecordJoin(ctx, guildID, msg.Author.ID, createdAt)
}

func (s *PostgresStorage) RecordJoin(ctx context.Context, guildID, authorID string, at time.Time) error {
	query := `
		INSERT INTO author_first_seen (guild_id, author_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, author_id)
		DO UPDATE SET joined_at = LEAST(author_first_seen.joined_at, EXCLUDED.joined_at)`

	if _, err := s.db.ExecContext(ctx, query, guildID, authorID, at); err != nil {
		return fmt.Errorf("error recording author join: %w", err)
	}
	return nil
}

func (s *PostgresStorage) AuthorJoinedAt(ctx context.Context, guildID, authorID string) (*time.Time, error) {
	query := `
		SELECT joined_at
		FROM author_first_seen
		WHERE guild_id = $1 AND author_id = $2`

	var joinedAt time.Time
	err := s.db.QueryRowContext(ctx, query, guildID, authorID).Scan(&joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading author join time: %w", err)
	}
	return &joinedAt, nil
}

func (s *PostgresStorage) AuthorMessageCount(ctx context.Context, guildID, authorID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM channel_messages
		WHERE guild_id = $1 AND author_id = $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, guildID, authorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting author messages: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) RecentChannelMessages(ctx context.Context, channelID string, limit int) ([]string, error) {
	query := `
		SELECT content
		FROM channel_messages
		WHERE channel_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying channel messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("error scanning channel message: %w", err)
		}
		newestFirst = append(newestFirst, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel messages: %w", err)
	}

	messages := make([]string, len(newestFirst))
	for i, content := range newestFirst {
		messages[len(newestFirst)-1-i] = content
	}
	return messages, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
