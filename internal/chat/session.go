package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SenderBot  = "bot"
	SenderUser = "user"
)

// Message is one line of the conversation as shown to the user.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// frame is the JSON payload of a "data: " line.
type frame struct {
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
	maxLineSize  = 1 << 20
)

// Session is one reservation conversation. It never reconnects on its own.
type Session struct {
	upstream      Upstream
	reservationID string
	logger        *zap.Logger
	nowFunc       func() time.Time

	mu        sync.Mutex
	messages  []Message
	connected bool
	onMessage func(Message)
	onEnd     func()
}

func NewSession(upstream Upstream, reservationID string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		upstream:      upstream,
		reservationID: reservationID,
		logger:        logger.With(zap.String("reservation_id", reservationID)),
		nowFunc:       time.Now,
	}
}

// OnMessage registers a callback for every appended message, bot or user.
func (s *Session) OnMessage(fn func(Message)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// OnEnd registers a callback for the agent's "end" frame.
func (s *Session) OnEnd(fn func()) {
	s.mu.Lock()
	s.onEnd = fn
	s.mu.Unlock()
}

// Connect opens the stream and consumes it until [DONE], EOF, an error or
// ctx cancellation. The session is disconnected when it returns.
func (s *Session) Connect(ctx context.Context) error {
	body, err := s.upstream.Connect(ctx, s.reservationID)
	if err != nil {
		s.setConnected(false)
		s.logger.Warn("chat connect failed", zap.Error(err))
		return err
	}
	defer body.Close()
	s.setConnected(true)
	return s.Consume(body)
}

// Consume decodes a text/event-stream body.
func (s *Session) Consume(r io.Reader) error {
	defer s.setConnected(false)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := line[len(dataPrefix):]
		if strings.TrimSpace(data) == doneSentinel {
			s.logger.Debug("chat stream finished")
			return nil
		}
		s.handleFrame(data)
	}
	if err := sc.Err(); err != nil {
		s.logger.Warn("chat stream error", zap.Error(err))
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (s *Session) handleFrame(data string) {
	var f frame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		s.logger.Warn("skip malformed chat frame", zap.Error(err))
		return
	}
	switch {
	case f.Type == "chat_message" && f.Sender == SenderBot && f.Content != "":
		s.append(SenderBot, f.Content)
	case f.Type == "end":
		s.mu.Lock()
		fn := s.onEnd
		s.mu.Unlock()
		s.logger.Info("chat ended by agent")
		if fn != nil {
			fn()
		}
	}
}

// Send forwards content upstream and records it on success.
func (s *Session) Send(ctx context.Context, content string) bool {
	if err := s.upstream.Send(ctx, s.reservationID, content); err != nil {
		s.logger.Warn("chat send failed", zap.Error(err))
		return false
	}
	s.append(SenderUser, content)
	return true
}

func (s *Session) append(sender, content string) {
	m := Message{ID: uuid.NewString(), Sender: sender, Content: content, Timestamp: s.nowFunc().UTC()}
	s.mu.Lock()
	s.messages = append(s.messages, m)
	fn := s.onMessage
	s.mu.Unlock()
	if fn != nil {
		fn(m)
	}
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
