// Package draft persists partially filled wizard records per session.
// No operation returns an error: a failing backend degrades to "nothing
// saved" so the wizard stays usable.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"consult-intake/internal/common/config"
	apperrors "consult-intake/internal/common/errors"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/metrics"
	"consult-intake/internal/models"
)

// CurrentVersion is the snapshot schema version written by Save.
const CurrentVersion = 1

// SubmitLockTTL bounds how long a session's terminal handoff is held. It
// outlives one record insert plus one checkout session request.
const SubmitLockTTL = 2 * time.Minute

// Migration upgrades a snapshot's data from an older version to CurrentVersion.
type Migration func(models.FormRecord) (models.FormRecord, error)

type Store struct {
	rdb        redis.Cmdable
	prefix     string
	ttl        time.Duration
	migrations map[int]Migration
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Store)

// WithMigration registers an upgrade path from version from.
func WithMigration(from int, m Migration) Option {
	return func(s *Store) { s.migrations[from] = m }
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(rdb redis.Cmdable, cfg config.DraftConfig, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		rdb:        rdb,
		prefix:     cfg.KeyPrefix,
		ttl:        config.GetDuration(cfg.TTL),
		migrations: make(map[int]Migration),
		logger:     log.WithFields(map[string]interface{}{"component": "draft-store"}),
		now:        time.Now,
	}
	if s.prefix == "" {
		s.prefix = config.DefaultDraftPrefix
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key is the Redis key of a session's slot.
func (s *Store) Key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sessionID)
}

// Slot binds the store to one session.
func (s *Store) Slot(sessionID string) *Slot {
	return &Slot{store: s, sessionID: sessionID}
}

// Save writes {version, timestamp, data} to the session slot.
func (s *Store) Save(ctx context.Context, sessionID string, rec models.FormRecord) {
	snap := models.DraftSnapshot{
		Version:   CurrentVersion,
		Timestamp: s.now().UnixMilli(),
		Data:      rec,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		s.fail(ctx, "save", sessionID, err)
		return
	}
	if err := s.rdb.Set(ctx, s.Key(sessionID), raw, s.ttl).Err(); err != nil {
		s.fail(ctx, "save", sessionID, err)
	}
}

// Load returns the stored record, or an empty record when the slot is empty,
// unreadable or holds a version with no registered migration. The last two
// cases also clear the slot.
func (s *Store) Load(ctx context.Context, sessionID string) models.FormRecord {
	snap, ok := s.read(ctx, sessionID)
	if !ok {
		return models.FormRecord{}
	}
	if snap.Version == CurrentVersion {
		if snap.Data == nil {
			return models.FormRecord{}
		}
		return snap.Data
	}

	log := logger.FromContext(ctx, s.logger).WithFields(map[string]interface{}{
		"sessionId":     sessionID,
		"storedVersion": snap.Version,
	})

	migrate, found := s.migrations[snap.Version]
	if !found {
		log.Warn("No draft migration path, discarding snapshot", nil)
		metrics.DraftsDiscarded.WithLabelValues("version").Inc()
		s.Clear(ctx, sessionID)
		return models.FormRecord{}
	}

	migrated, err := migrate(snap.Data)
	if err != nil {
		log.Warn("Draft migration failed, discarding snapshot", map[string]interface{}{"error": err})
		metrics.DraftsDiscarded.WithLabelValues("migration_failed").Inc()
		s.Clear(ctx, sessionID)
		return models.FormRecord{}
	}
	log.Info("Draft snapshot migrated", nil)
	s.Save(ctx, sessionID, migrated)
	return migrated
}

// Clear removes the slot unconditionally.
func (s *Store) Clear(ctx context.Context, sessionID string) {
	if err := s.rdb.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		s.fail(ctx, "clear", sessionID, err)
	}
}

// AcquireSubmit takes the session's submission lock. It reports false while
// another request holds it. A failing backend grants the lock: the draft the
// caller is about to submit was read from that same backend.
func (s *Store) AcquireSubmit(ctx context.Context, sessionID string) bool {
	ok, err := s.rdb.SetNX(ctx, s.submitKey(sessionID), 1, SubmitLockTTL).Result()
	if err != nil {
		s.fail(ctx, "lock", sessionID, err)
		return true
	}
	return ok
}

// ReleaseSubmit drops the session's submission lock.
func (s *Store) ReleaseSubmit(ctx context.Context, sessionID string) {
	if err := s.rdb.Del(ctx, s.submitKey(sessionID)).Err(); err != nil {
		s.fail(ctx, "unlock", sessionID, err)
	}
}

func (s *Store) submitKey(sessionID string) string {
	return s.Key(sessionID) + ":submitting"
}

// Info describes the slot without decoding its data.
type Info struct {
	HasData   bool
	Version   int
	Timestamp time.Time
	Age       time.Duration
}

func (s *Store) Info(ctx context.Context, sessionID string) Info {
	snap, ok := s.read(ctx, sessionID)
	if !ok {
		return Info{}
	}
	ts := time.UnixMilli(snap.Timestamp)
	return Info{
		HasData:   true,
		Version:   snap.Version,
		Timestamp: ts,
		Age:       s.now().Sub(ts),
	}
}

func (s *Store) read(ctx context.Context, sessionID string) (models.DraftSnapshot, bool) {
	raw, err := s.rdb.Get(ctx, s.Key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.DraftSnapshot{}, false
	}
	if err != nil {
		s.fail(ctx, "load", sessionID, err)
		return models.DraftSnapshot{}, false
	}

	var snap models.DraftSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.fail(ctx, "decode", sessionID, err)
		metrics.DraftsDiscarded.WithLabelValues("corrupt").Inc()
		s.Clear(ctx, sessionID)
		return models.DraftSnapshot{}, false
	}
	return snap, true
}

func (s *Store) fail(ctx context.Context, op, sessionID string, err error) {
	metrics.DraftStoreErrors.WithLabelValues(op).Inc()
	stdErr := apperrors.NewDraftStoreUnavailableError(op, err)
	logger.FromContext(ctx, s.logger).Warn("Draft store operation failed", map[string]interface{}{
		"sessionId": sessionID,
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})
}

// Slot is a Store bound to a single session key.
type Slot struct {
	store     *Store
	sessionID string
}

func (s *Slot) Save(ctx context.Context, rec models.FormRecord) { s.store.Save(ctx, s.sessionID, rec) }
func (s *Slot) Load(ctx context.Context) models.FormRecord     { return s.store.Load(ctx, s.sessionID) }
func (s *Slot) Clear(ctx context.Context)                      { s.store.Clear(ctx, s.sessionID) }
func (s *Slot) Info(ctx context.Context) Info                  { return s.store.Info(ctx, s.sessionID) }

func (s *Slot) AcquireSubmit(ctx context.Context) bool {
	return s.store.AcquireSubmit(ctx, s.sessionID)
}

func (s *Slot) ReleaseSubmit(ctx context.Context) {
	s.store.ReleaseSubmit(ctx, s.sessionID)
}
