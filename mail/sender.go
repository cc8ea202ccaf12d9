package mail

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, subject, body string) error

func (f SenderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// LogSender writes every message to a logger instead of delivering it.
type LogSender struct {
	Logger zerolog.Logger
	// IncludeBody logs the rendered body. Leave off outside development.
	IncludeBody bool
}

func (s LogSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := s.Logger.Info().Str("to", to).Str("subject", subject)
	if s.IncludeBody {
		ev = ev.Str("body", body)
	}
	ev.Msg("mail message")
	return nil
}

// Message is a delivered message captured by Recorder.
type Message struct {
	To      string
	Subject string
	Body    string
}

// ErrRecorderFailure is what a failing Recorder returns when Err is unset.
var ErrRecorderFailure = errors.New("mail recorder: delivery failed")

// Recorder captures messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	fail     error
}

// FailWith makes subsequent Send calls return err (nil restores delivery).
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *Recorder) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.messages = append(r.messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of everything delivered so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
