package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/notefold/notefold-backend/internal/config"
	"github.com/notefold/notefold-backend/internal/delta"
	"github.com/notefold/notefold-backend/internal/document"
	"github.com/notefold/notefold-backend/internal/model"
	"github.com/notefold/notefold-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoteNotFound is returned when the requested root note does not exist.
var ErrNoteNotFound = errors.New("note not found")

const noteDocumentTTL = 10 * time.Minute

// NoteService renders notes into document trees. Resolved renders are cached
// in Redis; the cache is invalidated whenever a note's delta changes.
type NoteService struct {
	cfg      *config.Config
	noteRepo *repository.NoteRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

func NewNoteService(cfg *config.Config, noteRepo *repository.NoteRepository, rdb *redis.Client, log zerolog.Logger) *NoteService {
	return &NoteService{
		cfg:      cfg,
		noteRepo: noteRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "note_service").Logger(),
	}
}

// BuildDocument renders a note into its document tree. When resolve is true,
// note references are loaded and nested recursively; otherwise they stay as
// placeholders.
func (s *NoteService) BuildDocument(ctx context.Context, noteID uuid.UUID, resolve bool) (*document.Document, error) {
	root, err := s.loadNote(ctx, noteID.String())
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrNoteNotFound
	}

	opts := document.Options{MaxDepth: s.cfg.MaxNoteDepth}
	if resolve {
		opts.Loader = s.loadNote
	}

	doc, err := document.Build(ctx, *root, opts)
	if err != nil {
		return nil, fmt.Errorf("build document: %w", err)
	}
	return doc, nil
}

// GetDocumentJSON returns the serialized document tree of a note. Resolved
// renders are served from cache when possible.
func (s *NoteService) GetDocumentJSON(ctx context.Context, noteID uuid.UUID, resolve bool) (json.RawMessage, error) {
	var cacheKey string
	if resolve {
		cacheKey = config.CacheKey.NoteDocumentKey(noteID.String())
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			return json.RawMessage(cached), nil
		} else if err != redis.Nil {
			s.log.Warn().Err(err).Str("note_id", noteID.String()).Msg("document cache read failed")
		}
	}

	doc, err := s.BuildDocument(ctx, noteID, resolve)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	if resolve {
		if err := s.rdb.Set(ctx, cacheKey, raw, noteDocumentTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("note_id", noteID.String()).Msg("document cache write failed")
		}
	}

	return raw, nil
}

// RefreshNoteCache drops the cached render of a note. Callers invoke this
// after a note's delta is updated outside this service.
func (s *NoteService) RefreshNoteCache(ctx context.Context, noteID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.NoteDocumentKey(noteID.String())).Err()
}

// loadNote is the document builder's loader. Unknown ids and malformed ids
// both resolve to nil so the builder degrades instead of failing the render.
func (s *NoteService) loadNote(ctx context.Context, noteID string) (*document.Note, error) {
	id, err := uuid.Parse(noteID)
	if err != nil {
		return nil, nil
	}

	note, err := s.noteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load note %s: %w", noteID, err)
	}

	return toBuilderNote(note)
}

func toBuilderNote(note *model.Note) (*document.Note, error) {
	d, err := delta.Decode(note.Delta)
	if err != nil {
		return nil, fmt.Errorf("decode delta of note %s: %w", note.ID, err)
	}

	return &document.Note{
		ID:      note.ID.String(),
		Title:   note.Title,
		Variant: note.Variant,
		Delta:   d,
	}, nil
}
