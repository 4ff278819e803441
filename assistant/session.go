package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultMaxHistoryTurns bounds a session's history; each exchange adds two turns.
const DefaultMaxHistoryTurns = 100

// Session holds one conversation: its language and append-only history.
// Queries on a session run one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	language Language
	history  []ConversationTurn
	maxTurns int
	agent    *Agent
}

// NewSession creates an empty session. A full history makes Ask fail with
// ErrSessionFull; maxTurns <= 0 uses DefaultMaxHistoryTurns.
func NewSession(id string, lang Language, agent *Agent, maxTurns int) *Session {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxHistoryTurns
	}
	return &Session{ID: id, CreatedAt: time.Now(), language: lang, agent: agent, maxTurns: maxTurns}
}

// Ask runs question through the pipeline with the session history and, when it
// succeeds, appends the user and assistant turns in their English form.
func (s *Session) Ask(ctx context.Context, question string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history)+2 > s.maxTurns {
		return Outcome{Stage: StageReceived, Language: s.language},
			fmt.Errorf("%w: %d turns", ErrSessionFull, len(s.history))
	}
	out, err := s.agent.Ask(ctx, Query{
		Question: question,
		Language: s.language,
		History:  append([]ConversationTurn(nil), s.history...),
	})
	if err != nil {
		return out, err
	}
	s.history = append(s.history,
		turn(RoleUser, out.Question, strings.TrimSpace(question)),
		turn(RoleAssistant, out.EnglishAnswer, out.Answer.Answer),
	)
	return out, nil
}

func turn(role Role, english, shown string) ConversationTurn {
	t := ConversationTurn{Role: role, Text: english}
	if shown != english {
		t.Display = shown
	}
	return t
}

// Len reports the number of history turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// SetLanguage switches the session language. A change clears the history.
func (s *Session) SetLanguage(lang Language) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lang == s.language {
		return false
	}
	s.language = lang
	s.history = nil
	return true
}

// Snapshot returns the language and a copy of the history.
func (s *Session) Snapshot() (Language, []ConversationTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language, append([]ConversationTurn{}, s.history...)
}
