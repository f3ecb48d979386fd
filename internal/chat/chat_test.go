package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeAI struct {
	intent string
	reply  string
	fail   bool
	calls  []string
}

func (f *fakeAI) AskPrompt(_ context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.fail {
		return "", errors.New("provider unavailable")
	}
	if strings.Contains(prompt, "determine their intent") {
		return f.intent, nil
	}
	return f.reply, nil
}

func TestRespondGreetingIsCanned(t *testing.T) {
	ai := &fakeAI{intent: "Greeting"}
	w := NewWorkflow(ai)
	conv := NewConversation()

	reply, err := w.Respond(context.Background(), conv, "hi there")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(reply, "How can I help") {
		t.Fatalf("reply = %q", reply)
	}
	// only the intent classification should hit the provider
	if len(ai.calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(ai.calls))
	}
	if conv.Context["intent"] != "greeting" {
		t.Fatalf("intent = %v", conv.Context["intent"])
	}
	if conv.CurrentStep != "complete" {
		t.Fatalf("CurrentStep = %q", conv.CurrentStep)
	}
}

func TestRespondQuestionUsesProvider(t *testing.T) {
	ai := &fakeAI{intent: "question", reply: "The capital is Ankara."}
	w := NewWorkflow(ai)
	conv := NewConversation()

	reply, err := w.Respond(context.Background(), conv, "what is the capital of Turkey?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "The capital is Ankara." {
		t.Fatalf("reply = %q", reply)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("history length = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != "user" || conv.Messages[1].Role != "assistant" {
		t.Fatalf("history roles = %v", conv.Messages)
	}
}

func TestRespondUnknownIntentDefaultsToQuestion(t *testing.T) {
	ai := &fakeAI{intent: "I would say this is a greeting of sorts", reply: "ok"}
	w := NewWorkflow(ai)
	conv := NewConversation()

	if _, err := w.Respond(context.Background(), conv, "hmm"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if conv.Context["intent"] != "question" {
		t.Fatalf("intent = %v, want question fallback", conv.Context["intent"])
	}
}

func TestRespondHistoryWindow(t *testing.T) {
	ai := &fakeAI{intent: "question", reply: "ok"}
	w := NewWorkflow(ai)
	conv := NewConversation()
	for i := 0; i < 4; i++ {
		if _, err := w.Respond(context.Background(), conv, "turn"); err != nil {
			t.Fatalf("Respond: %v", err)
		}
	}

	// last call's prompt carries at most 5 history lines, so only two
	// of the three earlier user turns survive the window
	last := ai.calls[len(ai.calls)-1]
	if got := strings.Count(last, "user: turn"); got != 2 {
		t.Fatalf("history window not applied: %d user lines in prompt", got)
	}
	if len(conv.Messages) != 8 {
		t.Fatalf("full history length = %d, want 8", len(conv.Messages))
	}
}

func TestRespondProviderFailure(t *testing.T) {
	ai := &fakeAI{fail: true}
	w := NewWorkflow(ai)
	conv := NewConversation()

	if _, err := w.Respond(context.Background(), conv, "hello"); err == nil {
		t.Fatal("expected error when provider is down")
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("failed turn must not be recorded, history = %v", conv.Messages)
	}
}

func TestRunTask(t *testing.T) {
	ai := &fakeAI{intent: "task", reply: strings.Repeat("step detail ", 30)}
	w := NewWorkflow(ai)

	result, err := w.RunTask(context.Background(), "write a report", map[string]any{"format": "pdf"})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if result.Status != "completed" {
		t.Fatalf("Status = %q", result.Status)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("Steps = %v", result.Steps)
	}
	if !strings.HasSuffix(result.Steps[1].Result, "...") {
		t.Fatalf("execution excerpt not truncated: %q", result.Steps[1].Result)
	}
	if !strings.Contains(ai.calls[0], "write a report") {
		t.Fatalf("task not in prompt: %q", ai.calls[0])
	}
}

func TestPing(t *testing.T) {
	w := NewWorkflow(&fakeAI{reply: "hi"})
	if err := w.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	down := NewWorkflow(&fakeAI{fail: true})
	if err := down.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
}
