// Package orchestrator builds the model context for one inbound message and
// drives the bounded tool-calling loop against the language-model backend.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// MaxTurns bounds the tool-calling loop to cap latency and cost.
const MaxTurns = 3

// ChatCompleter is the subset of the OpenAI client the loop needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ClientSource hands out a chat client for a tenant's API key.
type ClientSource interface {
	ClientFor(apiKey string) ChatCompleter
}

// Orchestrator runs the conversational core for one tenant at a time.
type Orchestrator struct {
	clients      ClientSource
	tools        *ToolRunner
	defaultModel string
}

func New(clients ClientSource, tools *ToolRunner, defaultModel string) *Orchestrator {
	return &Orchestrator{clients: clients, tools: tools, defaultModel: defaultModel}
}

// Reply produces the draft reply for an inbound message. history must be
// chronological and already trimmed by the caller's limit. The returned string
// may be empty when the model yields no content within MaxTurns; the caller
// substitutes its fallback.
func (o *Orchestrator) Reply(ctx context.Context, tenant *models.TenantConfig, apiKey string, env models.MessageEnvelope, history []models.ConversationTurn) (string, error) {
	system := BuildSystemPrompt(tenant, len(history) > 0, env.WasAudio())
	userText := RewriteAffirmation(history, env.Text)

	base := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	base = append(base, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		base = append(base, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	base = append(base, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText})

	model := tenant.ModelName
	if model == "" {
		model = o.defaultModel
	}

	client := o.clients.ClientFor(apiKey)
	tools := ToolDefinitions()

	// The transcript is an immutable accumulator: each iteration derives a new
	// slice instead of mutating a shared one across iterations.
	transcript := base
	lastContent := ""

	for turn := 0; turn < MaxTurns; turn++ {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: transcript,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			log.Warn().Str("companyID", tenant.CompanyID).Msg("Model returned no choices")
			return lastContent, nil
		}

		msg := resp.Choices[0].Message
		if msg.Content != "" {
			lastContent = msg.Content
		}

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		next := append(append([]openai.ChatCompletionMessage{}, transcript...), msg)
		for _, call := range msg.ToolCalls {
			log.Debug().
				Str("companyID", tenant.CompanyID).
				Str("tool", call.Function.Name).
				Int("loopTurn", turn).
				Msg("Executing tool call")

			result := o.tools.Execute(ctx, tenant, env.SenderJID, call.Function.Name, call.Function.Arguments)
			next = append(next, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
		transcript = next
	}

	log.Warn().
		Str("companyID", tenant.CompanyID).
		Int("maxTurns", MaxTurns).
		Msg("Tool loop exhausted its turn budget")
	return lastContent, nil
}
