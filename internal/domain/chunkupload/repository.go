package chunkupload

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// TransitionStatus is a compare-and-set on the session status. It
	// reports whether this caller won the transition.
	TransitionStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)
	// InsertChunk records a chunk confirmation if the index was not
	// confirmed before. Reports whether this call inserted the row.
	InsertChunk(ctx context.Context, c *Chunk) (bool, error)
	GetChunk(ctx context.Context, sessionID string, index int) (*Chunk, error)
	ListChunks(ctx context.Context, sessionID string) ([]*Chunk, error)
	// IncrementConfirmed atomically bumps the running confirmed counter and
	// returns the session's current count.
	IncrementConfirmed(ctx context.Context, sessionID string) (int, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Session, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repository) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id string, from []Status, to Status) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertChunk(ctx context.Context, c *Chunk) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) GetChunk(ctx context.Context, sessionID string, index int) (*Chunk, error) {
	var c Chunk
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND chunk_index = ?", sessionID, index).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListChunks(ctx context.Context, sessionID string) ([]*Chunk, error) {
	var chunks []*Chunk
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *repository) IncrementConfirmed(ctx context.Context, sessionID string) (int, error) {
	err := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Update("confirmed_chunks", gorm.Expr("confirmed_chunks + 1")).Error
	if err != nil {
		return 0, err
	}

	var s Session
	if err := r.db.WithContext(ctx).Select("confirmed_chunks").Where("id = ?", sessionID).First(&s).Error; err != nil {
		return 0, err
	}
	return s.ConfirmedChunks, nil
}

func (r *repository) ListExpired(ctx context.Context, now time.Time) ([]*Session, error) {
	var sessions []*Session
	err := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?", []Status{StatusInitializing, StatusActive}, now).
		Find(&sessions).Error
	return sessions, err
}
