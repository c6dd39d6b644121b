package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/notefold/notefold-backend/internal/config"
	"github.com/notefold/notefold-backend/internal/model"
	"github.com/notefold/notefold-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	AnswersBatchSize    = 50
	AnswersBatchTimeout = 2 * time.Second
	AnswersPollTimeout  = 1 * time.Second
)

// AnswersWorker consumes persist_answers_queue and writes submission answer
// arrays to PostgreSQL in batches.
type AnswersWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAnswersWorker creates a new AnswersWorker.
func NewAnswersWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AnswersWorker {
	return &AnswersWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "answers_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswersWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AnswersWorker started")

	batch := make([]*service.PersistAnswersPayload, 0, AnswersBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AnswersBatchSize || time.Since(lastFlush) >= AnswersBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, AnswersPollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p service.PersistAnswersPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *AnswersWorker) flushSafe(ctx context.Context, batch []*service.PersistAnswersPayload) {
	if len(batch) == 0 {
		return
	}

	// The answers cache is fresher than the queued payload when the student
	// saved a selection after the payload was enqueued. Prefer it.
	w.refreshFromCache(ctx, batch)

	if err := w.bulkUpdateAnswers(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk answers update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			}
		}
	}
}

func (w *AnswersWorker) refreshFromCache(ctx context.Context, batch []*service.PersistAnswersPayload) {
	pipe := w.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(batch))
	for i, p := range batch {
		cmds[i] = pipe.Get(ctx, config.CacheKey.SubmissionAnswersKey(p.SubmissionID))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return
	}

	for i, cmd := range cmds {
		cached, err := cmd.Result()
		if err != nil {
			continue
		}
		var answers []model.Answer
		if err := json.Unmarshal([]byte(cached), &answers); err != nil {
			w.log.Warn().Err(err).
				Str("submission_id", batch[i].SubmissionID).
				Msg("bad cached answers, keeping queued payload")
			continue
		}
		batch[i].Answers = answers
	}
}

// bulkUpdateAnswers writes the whole batch in one UPDATE using UNNEST.
func (w *AnswersWorker) bulkUpdateAnswers(ctx context.Context, batch []*service.PersistAnswersPayload) error {
	n := len(batch)

	ids := make([]uuid.UUID, 0, n)
	answerDocs := make([]string, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.SubmissionID)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(p.Answers)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		answerDocs = append(answerDocs, string(raw))
	}

	query := `
		UPDATE submissions AS s
		SET answers = t.answers::jsonb
		FROM (
			SELECT u.id, u.answers
			FROM UNNEST($1::uuid[], $2::text[]) AS u (id, answers)
		) AS t
		WHERE s.id = t.id
	`

	_, err := w.pool.Exec(ctx, query, ids, answerDocs)
	return err
}

func (w *AnswersWorker) persistSingle(ctx context.Context, p *service.PersistAnswersPayload) error {
	id, err := uuid.Parse(p.SubmissionID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(p.Answers)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE submissions SET answers = $1 WHERE id = $2`,
		raw, id,
	)
	return err
}
