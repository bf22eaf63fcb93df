// Package chat turns free text into task drafts and hands them to the
// draft review dialog. Nothing is persisted until the user accepts drafts
// there.
package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/orchestrator"
	"github.com/yukikurage/task-management-front/overlay"
)

// ErrBusy is returned when a generation is already running.
var ErrBusy = errors.New("generation already in progress")

type Generator interface {
	GenerateTasks(ctx context.Context, text string) ([]domain.TaskDraft, error)
}

// DraftReviewer is the dialog drafts are presented in, normally
// *orchestrator.TaskDraftAccept.
type DraftReviewer interface {
	Open(ctx context.Context, drafts []domain.TaskDraft) error
	Close()
}

// Panel is the floating chat input.
type Panel struct {
	gen      Generator
	reviewer DraftReviewer
	lang     orchestrator.Lang
	logger   *log.Entry

	mu         sync.Mutex
	generating bool
	drafts     []domain.TaskDraft
	errMsg     string
}

func NewPanel(gen Generator, reviewer DraftReviewer, lang orchestrator.Lang, logger *log.Logger) *Panel {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if lang == "" {
		lang = orchestrator.DefaultLang
	}
	return &Panel{gen: gen, reviewer: reviewer, lang: lang, logger: logger.WithField("component", "chat")}
}

// Submit sends text to the generation endpoint. Blank text is ignored. When
// drafts come back the review dialog is opened with them; when none do,
// nothing is opened.
func (p *Panel) Submit(ctx context.Context, text string) ([]domain.TaskDraft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	p.mu.Lock()
	if p.generating {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	p.generating = true
	p.errMsg = ""
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.generating = false
		p.mu.Unlock()
	}()

	drafts, err := p.gen.GenerateTasks(ctx, text)
	if err != nil {
		key := orchestrator.KeyGenerateFailed
		if apiclient.IsTransport(err) {
			key = orchestrator.KeyGenerateError
		}
		p.logger.WithError(err).Warn("chat: generation failed")
		p.mu.Lock()
		p.errMsg = orchestrator.Message(p.lang, key)
		p.mu.Unlock()
		return nil, err
	}
	if len(drafts) == 0 {
		return drafts, nil
	}

	p.mu.Lock()
	p.drafts = append([]domain.TaskDraft(nil), drafts...)
	p.mu.Unlock()
	if p.reviewer != nil {
		if err := p.reviewer.Open(ctx, drafts); err != nil {
			return drafts, err
		}
	}
	return drafts, nil
}

// Drafts returns the drafts of the last successful generation.
func (p *Panel) Drafts() []domain.TaskDraft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TaskDraft(nil), p.drafts...)
}

// Discard drops the drafts and closes the review dialog. No backend call is
// made.
func (p *Panel) Discard() {
	p.mu.Lock()
	p.drafts = nil
	p.mu.Unlock()
	if p.reviewer != nil {
		p.reviewer.Close()
	}
}

func (p *Panel) Generating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generating
}

func (p *Panel) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errMsg
}

// Portal places the chat input into the shell's floating slot.
func (p *Panel) Portal() overlay.Portal {
	return overlay.Portal{
		SlotID: overlay.DefaultSlot,
		Render: func() string {
			if p.Generating() {
				return "[chat] generating..."
			}
			if n := len(p.Drafts()); n > 0 {
				return "[chat] " + strconv.Itoa(n) + " drafts ready"
			}
			return "[chat] describe tasks to create"
		},
	}
}
