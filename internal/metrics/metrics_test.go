package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	pdfmulti "github.com/alnah/go-pdfmulti"
)

func TestStateHook(t *testing.T) {
	t.Parallel()

	m := New()

	// Two successful runs, one failed, one aborted.
	run := func(states ...pdfmulti.State) {
		for _, s := range states {
			m.StateHook(s)
		}
	}
	success := []pdfmulti.State{
		pdfmulti.StateIdle, pdfmulti.StateStaging, pdfmulti.StateWaitingForAssets,
		pdfmulti.StateConfiguring, pdfmulti.StateRendering, pdfmulti.StatePersisting,
		pdfmulti.StateCleanup, pdfmulti.StateDone,
	}
	run(success...)
	run(success...)
	run(pdfmulti.StateIdle, pdfmulti.StateStaging, pdfmulti.StateWaitingForAssets,
		pdfmulti.StateFailed, pdfmulti.StateCleanup)
	run(pdfmulti.StateIdle, pdfmulti.StateAborted)

	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues(pdfmulti.StateIdle.String())); got != 4 {
		t.Errorf("idle transitions = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues(pdfmulti.StateCleanup.String())); got != 3 {
		t.Errorf("cleanup transitions = %v, want 3", got)
	}

	m.StateHook(pdfmulti.StateIdle)
	if got := testutil.ToFloat64(m.inFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeDone},
		{pdfmulti.ErrEmptyContent, OutcomeAborted},
		{pdfmulti.ErrBusy, OutcomeBusy},
		{fmt.Errorf("%w: boom", pdfmulti.ErrRender), OutcomeFailed},
		{errors.New("other"), OutcomeFailed},
	}

	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveConversion(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveConversion(2*time.Second, &pdfmulti.Result{Pages: 3}, nil)
	m.ObserveConversion(time.Second, nil, pdfmulti.ErrAssetLoad)
	m.ObserveConversion(0, nil, pdfmulti.ErrBusy)

	if got := testutil.ToFloat64(m.conversions.WithLabelValues(OutcomeDone)); got != 1 {
		t.Errorf("done = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.conversions.WithLabelValues(OutcomeFailed)); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.conversions.WithLabelValues(OutcomeBusy)); got != 1 {
		t.Errorf("busy = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveConversion(time.Second, &pdfmulti.Result{Pages: 1}, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`pdfmulti_conversions_total{outcome="done"} 1`,
		"pdfmulti_conversion_duration_seconds_bucket",
		"pdfmulti_pdf_pages_count 1",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
