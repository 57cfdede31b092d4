package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
)

var _ pubsub.Store = (*ListStore)(nil)

// ListStore implements pubsub.Store on two tables created by Migrate.
// List elements are rows ordered by an identity column. Appends to the same
// key take a transaction-scoped advisory lock so identity order matches
// commit order, which keeps count-based trims from removing rows a reader
// has not seen yet.
//
// Every method honours a transaction attached with WithTx.
type ListStore struct {
	pool *pgxpool.Pool
}

// NewListStore creates a store over pool. Run Migrate first.
func NewListStore(pool *pgxpool.Pool) (*ListStore, error) {
	if pool == nil {
		return nil, ErrPoolNil
	}
	return &ListStore{pool: pool}, nil
}

func (s *ListStore) db(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *ListStore) Append(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return inTx(ctx, s.pool, func(q querier) error {
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return err
		}
		_, err := q.Exec(ctx, `INSERT INTO ionmq_list_items (key, value) VALUES ($1, $2)`, key, value)
		return err
	})
}

func (s *ListStore) ReadRange(ctx context.Context, key string, start, end int64) ([][]byte, error) {
	// Open-ended reads from a non-negative offset need no length.
	if start >= 0 && end == -1 {
		return s.collect(ctx, s.db(ctx),
			`SELECT value FROM ionmq_list_items WHERE key = $1 ORDER BY seq OFFSET $2`, key, start)
	}

	var out [][]byte
	err := inTx(ctx, s.pool, func(q querier) error {
		var n int64
		if err := q.QueryRow(ctx, `SELECT count(*) FROM ionmq_list_items WHERE key = $1`, key).Scan(&n); err != nil {
			return err
		}
		lo, hi, ok := pubsub.NormalizeRange(n, start, end)
		if !ok {
			out = [][]byte{}
			return nil
		}
		var err error
		out, err = s.collect(ctx, q,
			`SELECT value FROM ionmq_list_items WHERE key = $1 ORDER BY seq OFFSET $2 LIMIT $3`, key, lo, hi-lo+1)
		return err
	})
	return out, err
}

func (s *ListStore) collect(ctx context.Context, q querier, sql string, args ...any) ([][]byte, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[[]byte])
}

func (s *ListStore) Trim(ctx context.Context, key string, count int64) error {
	if count <= 0 {
		return nil
	}
	_, err := s.db(ctx).Exec(ctx, `
		DELETE FROM ionmq_list_items
		WHERE seq IN (
			SELECT seq FROM ionmq_list_items WHERE key = $1 ORDER BY seq LIMIT $2
		)`, key, count)
	return err
}

func (s *ListStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db(ctx).QueryRow(ctx, `SELECT value FROM ionmq_blobs WHERE key = $1`, key).Scan(&data)
	if IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *ListStore) SetBlob(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO ionmq_blobs (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (s *ListStore) Delete(ctx context.Context, key string) error {
	return inTx(ctx, s.pool, func(q querier) error {
		if _, err := q.Exec(ctx, `DELETE FROM ionmq_list_items WHERE key = $1`, key); err != nil {
			return err
		}
		_, err := q.Exec(ctx, `DELETE FROM ionmq_blobs WHERE key = $1`, key)
		return err
	})
}
