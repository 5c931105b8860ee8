package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rgale/corpusqa/internal/index"
	"github.com/rgale/corpusqa/internal/llm"
)

func newSelectThenAnswer(gw llm.Gateway) *SelectThenAnswer {
	retr := llm.NewRetrier(gw).WithPolicy(2, time.Millisecond)
	return NewSelectThenAnswer(retr, index.NewSelector(retr), testLogger())
}

func TestSelectThenAnswer_AnswersFromSelectedRecords(t *testing.T) {
	gw := &scriptedGateway{steps: []step{
		{out: "Looking at the index, I would pick [2, 4]."},
		{out: "The project was cancelled in March."},
	}}
	s := newSelectThenAnswer(gw)

	res, err := s.Answer(context.Background(), smallSnapshot(5), "when was it cancelled?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Answer != "The project was cancelled in March." {
		t.Errorf("answer = %q", res.Answer)
	}
	want := []string{"m2.eml", "m4.eml"}
	if len(res.Sources) != len(want) {
		t.Fatalf("sources = %v, want %v", res.Sources, want)
	}
	for i, f := range want {
		if res.Sources[i] != f {
			t.Errorf("sources[%d] = %q, want %q", i, res.Sources[i], f)
		}
	}

	answerPrompt := gw.prompts[1]
	if !strings.Contains(answerPrompt, "subject 2") || !strings.Contains(answerPrompt, "subject 4") {
		t.Errorf("answer prompt missing selected records: %q", answerPrompt)
	}
	if strings.Contains(answerPrompt, "subject 1") {
		t.Errorf("unselected record leaked into answer prompt: %q", answerPrompt)
	}
}

func TestSelectThenAnswer_UnparseableSelectionFallsBack(t *testing.T) {
	gw := &scriptedGateway{steps: []step{
		{out: "I cannot decide."},
		{out: "best-effort answer"},
	}}
	s := newSelectThenAnswer(gw)

	res, err := s.Answer(context.Background(), smallSnapshot(3), "q")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Answer != "best-effort answer" {
		t.Errorf("answer = %q", res.Answer)
	}
	// fallback selects the first records, so all three appear as sources
	if len(res.Sources) != 3 {
		t.Errorf("sources = %v, want all 3 fallback records", res.Sources)
	}
}

func TestSelectThenAnswer_NoCredentialsDegradesToMock(t *testing.T) {
	gw := &scriptedGateway{steps: []step{
		{err: llm.ErrNoCredentials},
	}}
	s := newSelectThenAnswer(gw)

	res, err := s.Answer(context.Background(), smallSnapshot(2), "offline question")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(res.Answer, "[mock response]") {
		t.Errorf("expected labeled mock answer, got %q", res.Answer)
	}
}

func TestSelectThenAnswer_UpstreamFailureSurfaces(t *testing.T) {
	gw := &scriptedGateway{steps: []step{
		{out: "[1]"},
		{err: &llm.UpstreamError{Status: 503, Err: errors.New("unavailable")}},
	}}
	s := newSelectThenAnswer(gw)

	_, err := s.Answer(context.Background(), smallSnapshot(1), "q")
	if err == nil {
		t.Fatal("expected error")
	}
	var ue *llm.UpstreamError
	if !errors.As(err, &ue) {
		t.Errorf("error = %v, want UpstreamError", err)
	}
}
