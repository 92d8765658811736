package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

// ChatFailedText replaces an empty model reply when the stream fails.
const ChatFailedText = "Sorry, something went wrong. Please try again."

// ChatSession is a snapshot of one session's transcript.
type ChatSession struct {
	ID       string               `json:"id"`
	Messages []domain.ChatMessage `json:"messages"`
}

type chatSession struct {
	id string

	// send serializes Send calls so each reply has a single writer.
	send sync.Mutex

	mu       sync.Mutex
	messages []domain.ChatMessage
}

func (s *chatSession) snapshot() ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ChatSession{ID: s.id, Messages: slices.Clone(s.messages)}
}

func (s *chatSession) append(m domain.ChatMessage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return len(s.messages) - 1
}

func (s *chatSession) update(i int, fn func(*domain.ChatMessage)) domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.messages[i])
	return s.messages[i]
}

// ChatService runs streaming chat sessions held in process memory.
type ChatService struct {
	gen     ports.Generator
	prompts ports.PromptStore
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*chatSession
}

func NewChatService(gen ports.Generator, prompts ports.PromptStore, logger *slog.Logger) *ChatService {
	return &ChatService{
		gen:      gen,
		prompts:  prompts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*chatSession),
	}
}

func (s *ChatService) Create() ChatSession {
	sess := &chatSession{id: uuid.NewString()}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return ChatSession{ID: sess.id, Messages: []domain.ChatMessage{}}
}

func (s *ChatService) History(id string) (ChatSession, error) {
	sess, err := s.session(id)
	if err != nil {
		return ChatSession{}, err
	}
	return sess.snapshot(), nil
}

// Send appends the user's message and a streaming model reply, then applies
// stream chunks to the reply strictly in arrival order. onChunk, if set, gets
// the reply after every chunk. The returned message is the final reply.
func (s *ChatService) Send(ctx context.Context, sessionID, text string, onChunk func(domain.ChatMessage)) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: empty message", domain.ErrInvalidState)
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	tmpl, err := s.prompts.Prompt(ctx, ports.FeatureChat)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	prompt, err := renderPrompt(tmpl, map[string]string{"Text": text})
	if err != nil {
		return domain.ChatMessage{}, err
	}

	sess.send.Lock()
	defer sess.send.Unlock()

	history := turns(sess.snapshot().Messages)
	sess.append(domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Text:      text,
		Timestamp: s.now(),
	})
	idx := sess.append(domain.ChatMessage{
		ID:          uuid.NewString(),
		Role:        domain.RoleModel,
		Timestamp:   s.now(),
		IsStreaming: true,
	})

	buf := domain.NewStreamBuffer(domain.DeltaChunks)
	var streamErr error
	for chunk, err := range s.gen.GenerateStream(ctx, ports.GenerateRequest{
		Model:     tmpl.Model,
		System:    tmpl.System,
		Prompt:    prompt,
		History:   history,
		WebSearch: tmpl.WebSearch,
	}) {
		if err != nil {
			streamErr = err
			break
		}
		running, err := buf.Apply(buf.Len(), chunk)
		if err != nil {
			streamErr = err
			break
		}
		msg := sess.update(idx, func(m *domain.ChatMessage) { m.Text = running })
		if onChunk != nil {
			onChunk(msg)
		}
	}

	final := sess.update(idx, func(m *domain.ChatMessage) {
		m.IsStreaming = false
		if streamErr != nil && m.Text == "" {
			m.Text = ChatFailedText
		}
	})
	if streamErr != nil {
		s.logger.WarnContext(ctx, "chat stream failed", "session_id", sessionID, "chunks", buf.Len(), "error", streamErr)
		return final, fmt.Errorf("chat: %w", streamErr)
	}
	return final, nil
}

func (s *ChatService) session(id string) (*chatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// turns converts finished messages to model history. A user message whose
// reply failed is dropped together with the reply, so turns keep alternating.
func turns(msgs []domain.ChatMessage) []ports.Turn {
	out := make([]ports.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.IsStreaming || m.Text == "" || m.Text == ChatFailedText {
			if n := len(out); m.Role == domain.RoleModel && n > 0 && out[n-1].Role == string(domain.RoleUser) {
				out = out[:n-1]
			}
			continue
		}
		out = append(out, ports.Turn{Role: string(m.Role), Text: m.Text})
	}
	return out
}
