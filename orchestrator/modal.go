// Package orchestrator implements the dialogs that mutate backend state. A
// dialog is active only while open, performs exactly one mutation per submit
// and, on success, resets itself, signals refresh and closes. On failure it
// stays open with its form intact and exposes a localized inline message.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/refresh"
)

var (
	ErrInFlight    = errors.New("a submission is already in progress")
	ErrClosed      = errors.New("dialog is not open")
	ErrNotCreator  = errors.New("only the task creator can do this")
	ErrNotOwner    = errors.New("only an organization owner can do this")
	ErrNoSelection = errors.New("nothing selected")
	ErrCanceled    = errors.New("canceled by user")
)

// Deps are shared by every dialog.
type Deps struct {
	Broker *refresh.Broker
	Logger *log.Logger
	Lang   Lang
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	if d.Lang == "" {
		d.Lang = DefaultLang
	}
	return d
}

// Modal holds the state common to every dialog.
type Modal struct {
	mu         sync.Mutex
	open       bool
	submitting bool
	errMsg     string

	broker *refresh.Broker
	logger *log.Entry
	lang   Lang

	// OnSuccess runs after a successful submit, outside any lock.
	OnSuccess func()
	// OnClose runs whenever the dialog closes.
	OnClose func()
}

func newModal(deps Deps, name string) Modal {
	deps = deps.withDefaults()
	return Modal{broker: deps.Broker, logger: deps.Logger.WithField("dialog", name), lang: deps.Lang}
}

func (m *Modal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Submitting reports whether a submit is in flight; the submit control is
// disabled while it is.
func (m *Modal) Submitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitting
}

// Err returns the inline error message, empty when there is none.
func (m *Modal) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Close deactivates the dialog and clears its message. Dialogs with form
// state override it to discard that state as well.
func (m *Modal) Close() {
	m.mu.Lock()
	wasOpen := m.open
	m.open = false
	m.errMsg = ""
	onClose := m.OnClose
	m.mu.Unlock()
	if wasOpen && onClose != nil {
		onClose()
	}
}

// activate marks the dialog open and clears any stale message.
func (m *Modal) activate() {
	m.mu.Lock()
	m.open = true
	m.errMsg = ""
	m.mu.Unlock()
}

// begin claims the in-flight guard. The returned function releases it.
func (m *Modal) begin() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, ErrClosed
	}
	if m.submitting {
		return nil, ErrInFlight
	}
	m.submitting = true
	m.errMsg = ""
	return func() {
		m.mu.Lock()
		m.submitting = false
		m.mu.Unlock()
	}, nil
}

// setErr shows msg inline and returns err for the caller.
func (m *Modal) setErr(msg string, err error) error {
	m.mu.Lock()
	m.errMsg = msg
	m.mu.Unlock()
	return err
}

// fail reports a failed backend call: API errors get the context-specific
// message, transport errors the generic one.
func (m *Modal) fail(err error, apiKey, transportKey string) error {
	key := apiKey
	if apiclient.IsTransport(err) || errors.Is(err, context.DeadlineExceeded) {
		key = transportKey
	}
	m.logger.WithError(err).Warn("orchestrator: submit failed")
	return m.setErr(Message(m.lang, key), err)
}

// invalid reports a local precondition failure.
func (m *Modal) invalid(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return m.setErr(ve.Message, err)
	}
	return m.setErr(err.Error(), err)
}

// succeed signals topics, closes the dialog and runs OnSuccess.
func (m *Modal) succeed(topics ...string) {
	if m.broker != nil && len(topics) > 0 {
		m.broker.Publish(topics...)
	}
	m.Close()
	m.mu.Lock()
	onSuccess := m.OnSuccess
	m.mu.Unlock()
	if onSuccess != nil {
		onSuccess()
	}
}

func (m *Modal) message(key string, args ...any) string {
	return Message(m.lang, key, args...)
}
