package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hcadmin/internal/models"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Get(ctx context.Context, code string) (models.ResponseMessage, error) {
	const query = `SELECT code, text, updated_at FROM response_messages WHERE code = $1`
	var msg models.ResponseMessage
	if err := r.pool.QueryRow(ctx, query, code).Scan(&msg.Code, &msg.Text, &msg.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ResponseMessage{}, ErrMessageNotFound
		}
		return models.ResponseMessage{}, err
	}
	return msg, nil
}

func (r *MessageRepository) Upsert(ctx context.Context, code, text string) error {
	const query = `
		INSERT INTO response_messages (code, text, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (code)
		DO UPDATE SET text = EXCLUDED.text, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, code, text)
	return err
}
