package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	session chat.Session
	history *History
	flash   string
}

// Service owns every live session and its history. Sessions are never shared
// and disappear on EndSession or after sitting idle longer than the TTL.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	idleTTL  time.Duration
	now      func() time.Time
}

// NewService bootstraps the in-memory session registry. A non-positive
// idleTTL disables expiry.
func NewService(idleTTL time.Duration) *Service {
	return &Service{
		sessions: make(map[string]*entry),
		idleTTL:  idleTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions an anonymous session with an empty history.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	now := s.now()
	session := chat.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastActive: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session, history: NewHistory()}
	s.mu.Unlock()

	log.Debug().Str("session_id", session.ID).Msg("session created")
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// History returns the live history owned by the session and marks the
// session active.
func (s *Service) History(_ context.Context, sessionID string) (*History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.session.LastActive = s.now()
	return e.history, nil
}

// LoadTranscript returns a snapshot of the session's turns.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return history.All(), nil
}

// SetFlash stores a one-shot notice shown on the next render.
func (s *Service) SetFlash(_ context.Context, sessionID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	e.flash = message
	return nil
}

// TakeFlash returns and clears the pending notice.
func (s *Service) TakeFlash(_ context.Context, sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return ""
	}
	msg := e.flash
	e.flash = ""
	return msg
}

// EndSession tears the session down together with its history.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	log.Debug().Str("session_id", sessionID).Msg("session ended")
	return nil
}

// Len reports how many sessions are live.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep ends every session idle for longer than the TTL and returns how many
// were removed.
func (s *Service) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if e.session.LastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				log.Info().Int("expired", n).Int("live", s.Len()).Msg("swept idle sessions")
			}
		}
	}
}
