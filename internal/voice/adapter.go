// Package voice turns one recorded utterance into a new task.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"daily-tracker/internal/logging"
)

var (
	ErrUnsupported      = errors.New("voice input is not supported")
	ErrBusy             = errors.New("already listening")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrPermissionDenied = errors.New("speech recognition permission denied")
)

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Utterance is one captured recording.
type Utterance struct {
	Data io.Reader
	MIME string
	Name string
}

// Recognizer transcribes an utterance.
type Recognizer interface {
	Recognize(ctx context.Context, u Utterance) (string, error)
}

// Sink receives recognized text, normally the task gateway.
type Sink func(ctx context.Context, text string) error

// Adapter runs at most one recognition at a time and always returns to Idle.
type Adapter struct {
	recognizer Recognizer
	log        logging.Logger

	mu    sync.Mutex
	state State
}

// NewAdapter builds an adapter. A nil recognizer makes it unsupported.
func NewAdapter(recognizer Recognizer, log logging.Logger) *Adapter {
	return &Adapter{recognizer: recognizer, log: log}
}

func (a *Adapter) Supported() bool {
	return a.recognizer != nil
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Listen transcribes u and forwards the text to sink.
func (a *Adapter) Listen(ctx context.Context, u Utterance, sink Sink) (string, error) {
	if !a.Supported() {
		return "", ErrUnsupported
	}

	a.mu.Lock()
	if a.state == Listening {
		a.mu.Unlock()
		return "", ErrBusy
	}
	a.state = Listening
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.state = Idle
		a.mu.Unlock()
	}()

	text, err := a.recognizer.Recognize(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			a.log.Info(ctx, "voice capture cancelled")
			return "", ctx.Err()
		}
		a.log.Warn(ctx, "voice capture failed", "err", err)
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoSpeech
	}
	if err := sink(ctx, text); err != nil {
		return text, fmt.Errorf("forward transcript: %w", err)
	}
	return text, nil
}

// Describe turns a Listen error into a message for the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "Voice input is not available here."
	case errors.Is(err, ErrBusy):
		return "Still processing the previous voice message."
	case errors.Is(err, ErrNoSpeech):
		return "No speech was detected. Please try again."
	case errors.Is(err, ErrPermissionDenied):
		return "Speech recognition was denied. Check the recognizer credentials."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Voice capture was cancelled."
	default:
		return "Could not recognize speech. Please try again."
	}
}
