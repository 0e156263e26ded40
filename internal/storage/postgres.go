package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/framedup/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// PostgresStorage records dedup decisions per stream. The 64-bit perceptual
// hash of each saved frame is stored as a pgvector column so similar saved
// frames can be found with a nearest-neighbor query.
type PostgresStorage struct {
	pool       *pgxpool.Pool
	streamID   int
	streamName string
}

// NewPostgresStorage creates a new PostgreSQL storage connection scoped to
// one named stream.
func NewPostgresStorage(ctx context.Context, config PostgresConfig, streamName string) (*PostgresStorage, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.DBName,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &PostgresStorage{
		pool:       pool,
		streamName: streamName,
	}

	streamID, err := storage.getOrCreateStream(ctx, streamName)
	if err != nil {
		return nil, err
	}
	storage.streamID = streamID

	return storage, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// getOrCreateStream gets an existing stream entry or creates a new one
func (s *PostgresStorage) getOrCreateStream(ctx context.Context, streamName string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM streams WHERE name = $1",
		streamName).Scan(&id)

	if err == nil {
		return id, nil
	} else if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("error checking for existing stream: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"INSERT INTO streams (name, created_at) VALUES ($1, $2) RETURNING id",
		streamName, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create stream entry: %w", err)
	}

	return id, nil
}

// AddDecision stores one dedup decision for the stream.
func (s *PostgresStorage) AddDecision(ctx context.Context, rec models.DecisionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions
        (stream_id, run_id, frame_number, saved, saved_path, hash,
         hash_distance, motion_score, ssim_score, reason, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.streamID, rec.RunID, rec.FrameNumber, rec.Saved, rec.SavedPath,
		fmt.Sprintf("%016x", rec.Hash), rec.HashDistance, rec.MotionScore,
		rec.SSIMScore, rec.Reason, pgvector.NewVector(hashVector(rec.Hash)),
		time.Now())

	if err != nil {
		return fmt.Errorf("failed to store decision: %w", err)
	}

	return nil
}

// SearchSimilarFrames finds saved frames whose perceptual hash is closest to
// hash, most similar first. Similarity is 1 minus the normalized Hamming
// distance over the 64 hash bits.
func (s *PostgresStorage) SearchSimilarFrames(ctx context.Context, hash uint64, limit int) ([]models.FrameSearchResult, error) {
	query := pgvector.NewVector(hashVector(hash))

	rows, err := s.pool.Query(ctx,
		`SELECT d.frame_number, d.saved_path,
        1 - (d.embedding <-> $1) * (d.embedding <-> $1) / 64 AS similarity
        FROM decisions d
        WHERE d.stream_id = $2 AND d.saved
        ORDER BY d.embedding <-> $1
        LIMIT $3`,
		query, s.streamID, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var results []models.FrameSearchResult
	for rows.Next() {
		var result models.FrameSearchResult
		if err := rows.Scan(&result.FrameNumber, &result.FramePath,
			&result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// hashVector spreads the 64 hash bits into a float vector, one dimension per
// bit, so L2 distance in pgvector equals the square root of the Hamming
// distance.
func hashVector(hash uint64) []float32 {
	vec := make([]float32, 64)
	for i := 0; i < 64; i++ {
		if hash&(1<<uint(63-i)) != 0 {
			vec[i] = 1
		}
	}
	return vec
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, config PostgresConfig) error {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.DBName,
	)

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for vector extension: %w", err)
	}

	if !exists {
		_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
		if err != nil {
			return fmt.Errorf("failed to create vector extension: %w", err)
		}
	}

	_, err = conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS streams (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(name)
        );

        CREATE TABLE IF NOT EXISTS decisions (
            id SERIAL PRIMARY KEY,
            stream_id INTEGER REFERENCES streams(id) ON DELETE CASCADE,
            run_id VARCHAR(36) NOT NULL,
            frame_number INTEGER NOT NULL,
            saved BOOLEAN NOT NULL,
            saved_path VARCHAR(255),
            hash CHAR(16) NOT NULL,
            hash_distance INTEGER NOT NULL,
            motion_score INTEGER NOT NULL,
            ssim_score DOUBLE PRECISION NOT NULL,
            reason VARCHAR(32),
            embedding vector(64),
            created_at TIMESTAMPTZ NOT NULL
        );
    `)

	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_decisions_stream_id ON decisions(stream_id);
        CREATE INDEX IF NOT EXISTS idx_decisions_embedding ON decisions USING ivfflat (embedding vector_l2_ops) WITH (lists = 100);
    `)

	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
