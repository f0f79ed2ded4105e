// Package identity resolves the user id every other component is keyed by.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"daily-tracker/internal/logging"
)

var ErrBootstrapFailed = errors.New("identity bootstrap failed")

// State is one step of identity resolution. Data access is allowed only once
// Ready is true and UserID is set.
type State struct {
	Ready  bool
	UserID string
	Err    error
}

// Usable reports whether sessions may be opened for this state.
func (s State) Usable() bool {
	return s.Ready && s.UserID != ""
}

// Provider is the authentication backend.
type Provider interface {
	SignInWithCustomToken(ctx context.Context, token string) (string, error)
	SignInAnonymously(ctx context.Context, installKey string) (string, error)
}

// Credentials select the sign-in method. A non-empty Token wins over the
// anonymous InstallKey.
type Credentials struct {
	Token      string
	InstallKey string
}

// Bootstrap performs a single sign-in attempt. A failed bootstrap stays not
// ready forever; build a new one to try again.
type Bootstrap struct {
	provider Provider
	creds    Credentials
	log      logging.Logger

	once  sync.Once
	done  chan struct{}
	final State
}

func NewBootstrap(provider Provider, creds Credentials, log logging.Logger) *Bootstrap {
	return &Bootstrap{
		provider: provider,
		creds:    creds,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Resolve streams the not-ready state, then the outcome, then closes. The
// first call starts the attempt using ctx; later calls share its result.
func (b *Bootstrap) Resolve(ctx context.Context) <-chan State {
	out := make(chan State, 2)
	out <- State{}
	b.start(ctx)

	go func() {
		defer close(out)
		select {
		case <-b.done:
			out <- b.final
		case <-ctx.Done():
		}
	}()
	return out
}

// Wait blocks until the attempt finishes or ctx ends.
func (b *Bootstrap) Wait(ctx context.Context) (State, error) {
	b.start(ctx)
	select {
	case <-b.done:
		return b.final, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (b *Bootstrap) start(ctx context.Context) {
	b.once.Do(func() {
		go b.signIn(ctx)
	})
}

func (b *Bootstrap) signIn(ctx context.Context) {
	defer close(b.done)

	var (
		uid    string
		err    error
		method = "anonymous"
	)
	if b.creds.Token != "" {
		method = "token"
		uid, err = b.provider.SignInWithCustomToken(ctx, b.creds.Token)
	} else {
		uid, err = b.provider.SignInAnonymously(ctx, b.creds.InstallKey)
	}
	if err == nil && uid == "" {
		err = errors.New("provider returned an empty user id")
	}
	if err != nil {
		b.log.Error(ctx, "sign-in failed", "method", method, "err", err)
		b.final = State{Err: fmt.Errorf("%w: %w", ErrBootstrapFailed, err)}
		return
	}

	b.log.Info(ctx, "signed in", "method", method, "uid", uid)
	b.final = State{Ready: true, UserID: uid}
}
