package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func testLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestRunJobsBoundsConcurrency(t *testing.T) {
	var running, peak int32
	errs := runJobs(context.Background(), testLogger().WithField("t", "pool"), 3, 10, func(context.Context, int) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	if len(errs) != 10 {
		t.Fatalf("expected 10 results, got %d", len(errs))
	}
	if peak > 3 {
		t.Fatalf("expected at most 3 concurrent jobs, saw %d", peak)
	}
}

func TestRunJobsReportsPerIndexErrors(t *testing.T) {
	boom := errors.New("boom")
	logger, hook := test.NewNullLogger()
	errs := runJobs(context.Background(), logger.WithField("t", "pool"), 2, 4, func(_ context.Context, i int) error {
		if i%2 == 1 {
			return boom
		}
		return nil
	})
	for i, err := range errs {
		if (i%2 == 1) != (err != nil) {
			t.Fatalf("index %d: unexpected error %v", i, err)
		}
	}
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("expected 2 logged failures, got %d", len(hook.AllEntries()))
	}
}

func TestRunJobsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var mu sync.Mutex
	calls := 0
	errs := runJobs(ctx, testLogger().WithField("t", "pool"), 2, 3, func(context.Context, int) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	if calls != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", calls)
	}
	for _, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}
}

func TestValidateFormFieldNames(t *testing.T) {
	err := validateForm(&TaskForm{}, Japanese)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Fields["organization_id"] != "組織を選択してください。" || ve.Fields["title"] != "タイトルを入力してください。" {
		t.Fatalf("unexpected fields %v", ve.Fields)
	}
	if ve.Message != "組織を選択してください。" {
		t.Fatalf("expected first field message, got %q", ve.Message)
	}
	if err := validateForm(&TaskForm{OrganizationID: 1, Title: "x"}, Japanese); err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}
