package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hcadmin/internal/models"
)

type AttachmentRepository struct {
	pool *pgxpool.Pool
}

func NewAttachmentRepository(pool *pgxpool.Pool) *AttachmentRepository {
	return &AttachmentRepository{pool: pool}
}

const attachmentColumns = `id, user_id, bucket, object_key, file_name, content_type, format, size_bytes, checksum, created_at`

func (r *AttachmentRepository) Create(ctx context.Context, attachment models.Attachment) error {
	const query = `
		INSERT INTO attachments (
			id, user_id, bucket, object_key, file_name, content_type, format, size_bytes, checksum, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	_, err := r.pool.Exec(ctx, query,
		attachment.ID,
		attachment.UserID,
		attachment.Bucket,
		attachment.ObjectKey,
		attachment.FileName,
		attachment.ContentType,
		attachment.Format,
		attachment.SizeBytes,
		attachment.Checksum,
		attachment.CreatedAt,
	)
	return err
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (models.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`
	return scanAttachment(r.pool.QueryRow(ctx, query, id))
}

func (r *AttachmentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Attachment, error) {
	query := `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Attachment
	for rows.Next() {
		item, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanAttachment(row pgx.Row) (models.Attachment, error) {
	var a models.Attachment
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Bucket,
		&a.ObjectKey,
		&a.FileName,
		&a.ContentType,
		&a.Format,
		&a.SizeBytes,
		&a.Checksum,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Attachment{}, ErrAttachmentNotFound
		}
		return models.Attachment{}, err
	}
	return a, nil
}
