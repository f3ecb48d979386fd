// Package chat runs the conversational agent workflow: an intent
// classification pass followed by a response pass, with conversation
// history carried between turns.
package chat

import (
	"context"
	"fmt"
	"strings"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the stored state for one conversation id. Fields are
// declared upfront so the workflow never invents keys mid-flight.
type Conversation struct {
	Messages    []Message      `json:"messages"`
	CurrentStep string         `json:"current_step"`
	Context     map[string]any `json:"context"`
	UserInput   string         `json:"user_input"`
	AIResponse  string         `json:"ai_response"`
}

// NewConversation returns an empty conversation ready for its first turn.
func NewConversation() *Conversation {
	return &Conversation{
		CurrentStep: "start",
		Context:     map[string]any{},
	}
}

// Completer is the slice of the AI client the workflow needs.
type Completer interface {
	AskPrompt(ctx context.Context, prompt string) (string, error)
}

// TaskStep is one step of a task workflow response.
type TaskStep struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
	Result      string `json:"result"`
	Completed   bool   `json:"completed"`
}

// TaskResult is the outcome of the task workflow.
type TaskResult struct {
	Result string     `json:"result"`
	Steps  []TaskStep `json:"steps"`
	Status string     `json:"status"`
}

// Workflow answers chat turns and task requests through a Completer.
type Workflow struct {
	ai Completer
}

// NewWorkflow wires a chat workflow.
func NewWorkflow(ai Completer) *Workflow {
	return &Workflow{ai: ai}
}

const historyWindow = 5

// Respond runs one turn: classify the intent, generate a reply, and
// append both sides to the conversation history.
func (w *Workflow) Respond(ctx context.Context, conv *Conversation, userInput string) (string, error) {
	conv.UserInput = userInput
	conv.CurrentStep = "analyze_intent"

	intent, err := w.analyzeIntent(ctx, userInput)
	if err != nil {
		return "", fmt.Errorf("analyze intent: %w", err)
	}
	conv.Context["intent"] = intent
	conv.CurrentStep = "process_intent"

	var reply string
	switch intent {
	case "greeting":
		reply = "Hello! I'm your AI assistant. How can I help you today?"
	case "goodbye":
		reply = "Goodbye! Have a great day!"
	default:
		reply, err = w.contextualReply(ctx, conv, userInput)
		if err != nil {
			return "", fmt.Errorf("generate response: %w", err)
		}
	}

	conv.Messages = append(conv.Messages,
		Message{Role: "user", Content: userInput},
		Message{Role: "assistant", Content: reply})
	conv.AIResponse = reply
	conv.CurrentStep = "complete"
	return reply, nil
}

func (w *Workflow) analyzeIntent(ctx context.Context, userInput string) (string, error) {
	prompt := fmt.Sprintf(`Analyze the user's message and determine their intent.
User message: %s

Classify the intent as one of:
- greeting: User is greeting or starting conversation
- question: User is asking a question
- task: User wants to perform a specific task
- goodbye: User is ending the conversation

Respond with just the intent category.`, userInput)

	response, err := w.ai.AskPrompt(ctx, prompt)
	if err != nil {
		return "", err
	}
	intent := strings.ToLower(strings.TrimSpace(response))
	switch intent {
	case "greeting", "question", "task", "goodbye":
		return intent, nil
	}
	return "question", nil
}

func (w *Workflow) contextualReply(ctx context.Context, conv *Conversation, userInput string) (string, error) {
	history := conv.Messages
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	lines := make([]string, len(history))
	for i, msg := range history {
		lines[i] = msg.Role + ": " + msg.Content
	}

	prompt := fmt.Sprintf(`Based on the conversation history and the user's current message, provide a helpful response.

Conversation history:
%s

Current user message: %s

Provide a helpful and contextual response.`, strings.Join(lines, "\n"), userInput)

	return w.ai.AskPrompt(ctx, prompt)
}

// RunTask executes a task request with a single planning-and-execution
// call and reports a fixed two-step structure.
func (w *Workflow) RunTask(ctx context.Context, task string, parameters map[string]any) (*TaskResult, error) {
	prompt := fmt.Sprintf(`Break down and execute this task step by step:
Task: %s
Parameters: %v

Provide a detailed response that includes:
1. Planning the task
2. Executing each step
3. A summary of results

Format your response clearly with numbered steps.`, task, parameters)

	response, err := w.ai.AskPrompt(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("task workflow: %w", err)
	}

	excerpt := response
	if len(excerpt) > 200 {
		excerpt = excerpt[:200] + "..."
	}
	return &TaskResult{
		Result: response,
		Status: "completed",
		Steps: []TaskStep{
			{StepNumber: 1, Description: "Task planning and analysis", Result: "Task analyzed and broken down into steps", Completed: true},
			{StepNumber: 2, Description: "Task execution", Result: excerpt, Completed: true},
		},
	}, nil
}

// Ping checks that the underlying AI provider answers at all.
func (w *Workflow) Ping(ctx context.Context) error {
	_, err := w.ai.AskPrompt(ctx, "Hello")
	return err
}
