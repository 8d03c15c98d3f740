package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-testgen-gateway/internal/cache"
	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/repo"
)

// Cipher seals and opens snippet text.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// HistoryService stores generations encrypted at rest and returns decrypted
// views to their owner. Pages are cached as ciphertext only.
type HistoryService struct {
	DB     *gorm.DB
	Cipher Cipher
	Cache  *cache.Engine // optional
}

// cachedRow is the ciphertext-only shape kept in the page cache.
type cachedRow struct {
	ID        string    `json:"id"`
	Language  string    `json:"language"`
	Model     string    `json:"model"`
	Input     string    `json:"in"`
	Output    string    `json:"out"`
	CreatedAt time.Time `json:"created_at"`
}

// Page keys embed a per-user version held in the shared store. Record
// rotates the version, so a reader that loaded rows before the insert writes
// its snapshot under a key nobody reads any more.
func (s *HistoryService) versionKey(userID string) (string, time.Duration) {
	key, ttl := cache.GenerateKey([]string{userID, "version"}, cache.StrategyHistory)
	return key, 2 * ttl
}

// pageKey returns the current page key. ok is false when the version cannot
// be read, in which case the cache is bypassed.
func (s *HistoryService) pageKey(ctx context.Context, userID string) (key string, ttl time.Duration, ok bool) {
	vkey, _ := s.versionKey(userID)
	version, _, err := s.Cache.Get(ctx, cache.StrategyHistory, vkey)
	if err != nil {
		return "", 0, false
	}
	key, ttl = cache.GenerateKey([]string{userID, version}, cache.StrategyHistory)
	return key, ttl, true
}

func (s *HistoryService) invalidate(ctx context.Context, userID string) {
	log := zerolog.Ctx(ctx)
	if key, _, ok := s.pageKey(ctx, userID); ok {
		if err := s.Cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Msg("history page cache invalidation failed")
		}
	}
	vkey, vttl := s.versionKey(userID)
	if err := s.Cache.SetEx(ctx, vkey, vttl, uuid.NewString()); err != nil {
		log.Warn().Err(err).Msg("history page version rotation failed")
	}
}

// Record encrypts and inserts one generation and returns its plaintext view.
func (s *HistoryService) Record(ctx context.Context, userID, language, model, input, output string) (domain.HistoryItem, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "Record", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	encIn, err := s.Cipher.Encrypt(input)
	if err != nil {
		return domain.HistoryItem{}, err
	}
	encOut, err := s.Cipher.Encrypt(output)
	if err != nil {
		return domain.HistoryItem{}, err
	}
	rec := &domain.HistoryRecord{
		UserID:          userID,
		Language:        language,
		Model:           model,
		EncryptedInput:  encIn,
		EncryptedOutput: encOut,
	}
	if err := repo.CreateHistory(ctx, s.DB, rec); err != nil {
		return domain.HistoryItem{}, err
	}
	if s.Cache != nil {
		s.invalidate(ctx, userID)
	}
	return domain.HistoryItem{
		ID:            rec.ID,
		InputCode:     input,
		GeneratedCode: output,
		Language:      language,
		Model:         model,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// List returns up to limit decrypted items, newest first. Rows that fail to
// decrypt are skipped and logged. limit <= 0 selects DefaultHistoryLimit;
// values above MaxHistoryLimit are clamped.
func (s *HistoryService) List(ctx context.Context, userID string, limit int) ([]domain.HistoryItem, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.page(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	log := zerolog.Ctx(ctx)
	out := make([]domain.HistoryItem, 0, len(rows))
	for _, r := range rows {
		in, err := s.Cipher.Decrypt(r.Input)
		if err != nil {
			log.Warn().Err(err).Str("history_id", r.ID).Msg("skipping undecryptable history row")
			continue
		}
		gen, err := s.Cipher.Decrypt(r.Output)
		if err != nil {
			log.Warn().Err(err).Str("history_id", r.ID).Msg("skipping undecryptable history row")
			continue
		}
		out = append(out, domain.HistoryItem{
			ID:            r.ID,
			InputCode:     in,
			GeneratedCode: gen,
			Language:      r.Language,
			Model:         r.Model,
			CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// page loads the newest MaxHistoryLimit rows, through the cache when present.
func (s *HistoryService) page(ctx context.Context, userID string) ([]cachedRow, error) {
	var (
		key    string
		ttl    time.Duration
		cached bool
	)
	if s.Cache != nil {
		key, ttl, cached = s.pageKey(ctx, userID)
	}
	if cached {
		if raw, ok, err := s.Cache.Get(ctx, cache.StrategyHistory, key); err == nil && ok {
			var rows []cachedRow
			if json.Unmarshal([]byte(raw), &rows) == nil {
				return rows, nil
			}
		}
	}

	recs, err := repo.ListHistory(ctx, s.DB, userID, MaxHistoryLimit)
	if err != nil {
		return nil, err
	}
	rows := make([]cachedRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, cachedRow{
			ID:        r.ID,
			Language:  r.Language,
			Model:     r.Model,
			Input:     r.EncryptedInput,
			Output:    r.EncryptedOutput,
			CreatedAt: r.CreatedAt,
		})
	}
	if cached {
		if b, err := json.Marshal(rows); err == nil {
			if err := s.Cache.SetEx(ctx, key, ttl, string(b)); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("history page cache write failed")
			}
		}
	}
	return rows, nil
}

// CountSince returns the number of generations userID recorded since t.
func (s *HistoryService) CountSince(ctx context.Context, userID string, t time.Time) (int64, error) {
	return repo.CountHistorySince(ctx, s.DB, userID, t)
}
