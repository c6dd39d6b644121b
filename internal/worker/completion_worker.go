package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notefold/notefold-backend/internal/config"
	"github.com/notefold/notefold-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	CompletionBatchSize    = 50
	CompletionBatchTimeout = 2 * time.Second
	CompletionPollTimeout  = 1 * time.Second
)

// CompletionWorker consumes persist_completions_queue and marks submissions
// completed with their final score.
type CompletionWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewCompletionWorker creates a new CompletionWorker.
func NewCompletionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *CompletionWorker {
	return &CompletionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "completion_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *CompletionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CompletionWorker started")

	batch := make([]*service.PersistCompletionPayload, 0, CompletionBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= CompletionBatchSize || time.Since(lastFlush) >= CompletionBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, CompletionPollTimeout, config.WorkerKey.PersistCompletionsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p service.PersistCompletionPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *CompletionWorker) flushSafe(ctx context.Context, batch []*service.PersistCompletionPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkComplete(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk completion update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistCompletionsQueue, raw)
			}
		}
		return
	}

	// Completed submissions no longer need their answers cache.
	w.bulkClearAnswerCaches(ctx, batch)
}

// bulkComplete writes the whole batch in one UPDATE using UNNEST.
func (w *CompletionWorker) bulkComplete(ctx context.Context, batch []*service.PersistCompletionPayload) error {
	n := len(batch)

	ids := make([]uuid.UUID, 0, n)
	scores := make([]float64, 0, n)
	completedOns := make([]time.Time, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.SubmissionID)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		scores = append(scores, p.Score)
		completedOns = append(completedOns, p.CompletedOn)
	}

	query := `
		UPDATE submissions AS s
		SET completed_on = t.completed_on,
		    score = t.score
		FROM (
			SELECT u.id, u.score, u.completed_on
			FROM UNNEST(
				$1::uuid[],
				$2::float8[],
				$3::timestamptz[]
			) AS u (id, score, completed_on)
		) AS t
		WHERE s.id = t.id
		  AND s.completed_on IS NULL
	`

	_, err := w.pool.Exec(ctx, query, ids, scores, completedOns)
	return err
}

func (w *CompletionWorker) bulkClearAnswerCaches(ctx context.Context, batch []*service.PersistCompletionPayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		pipe.Del(ctx, config.CacheKey.SubmissionAnswersKey(p.SubmissionID))
	}

	_, _ = pipe.Exec(ctx)
}

// persistSingle is the fallback when the bulk UPDATE fails.
func (w *CompletionWorker) persistSingle(ctx context.Context, p *service.PersistCompletionPayload) error {
	id, err := uuid.Parse(p.SubmissionID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE submissions
		 SET completed_on = $1, score = $2
		 WHERE id = $3 AND completed_on IS NULL`,
		p.CompletedOn, p.Score, id,
	)
	if err != nil {
		return err
	}

	w.rdb.Del(ctx, config.CacheKey.SubmissionAnswersKey(p.SubmissionID))
	return nil
}
