package content

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The content store holds the binary blobs assets reference by hash. The
// core never inspects the bytes; it stores and serves them as-is.

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("file already exists")
)

type File struct {
	Hash        string    `json:"hash"`
	Uploader    string    `json:"uploader"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

type FileRepository interface {
	SaveFile(ctx context.Context, meta File, data []byte) (File, error)
	GetFile(ctx context.Context, hash string) (File, []byte, error)
}

type postgresFileRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresFileRepository(pool *pgxpool.Pool) FileRepository {
	return &postgresFileRepository{pool: pool}
}

func (r *postgresFileRepository) SaveFile(ctx context.Context, meta File, data []byte) (File, error) {
	query := `INSERT INTO files (file_hash, uploader_principal, content_type, file_size, data, created_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          RETURNING file_hash, uploader_principal, content_type, file_size, created_at`

	row := r.pool.QueryRow(ctx, query, meta.Hash, meta.Uploader, meta.ContentType, int64(len(data)), data)

	var saved File
	if err := row.Scan(&saved.Hash, &saved.Uploader, &saved.ContentType, &saved.Size, &saved.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return File{}, ErrFileExists
		}
		return File{}, err
	}
	return saved, nil
}

func (r *postgresFileRepository) GetFile(ctx context.Context, hash string) (File, []byte, error) {
	query := `SELECT file_hash, uploader_principal, content_type, file_size, data, created_at
	          FROM files WHERE file_hash = $1`

	var f File
	var data []byte
	err := r.pool.QueryRow(ctx, query, hash).Scan(&f.Hash, &f.Uploader, &f.ContentType, &f.Size, &data, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, nil, ErrFileNotFound
		}
		return File{}, nil, err
	}
	return f, data, nil
}
