package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"clinical-advisor-be/pkg/stream"
)

// SessionRecord is the stored view of one streaming exchange. The live
// stream.Session is owned by the orchestrator for the duration of the run;
// the record is what survives for status queries afterwards.
type SessionRecord struct {
	Session *stream.Session
	Title   string
	EndedAt *time.Time
}

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	// Expired records are purged every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(record *SessionRecord) {
	r.cache.Set(record.Session.ID.String(), record, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*SessionRecord, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*SessionRecord), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
