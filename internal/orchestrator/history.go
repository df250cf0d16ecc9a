package orchestrator

import (
	"fmt"
	"strings"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// TrimHistory keeps the last limit turns in chronological order.
func TrimHistory(turns []models.ConversationTurn, limit int) []models.ConversationTurn {
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}

// Vocabulary signalling that the assistant just offered to send a file.
var offerVocabulary = []string{
	"pdf", "arquivo", "documento", "catálogo", "catalogo", "enviar", "mandar",
}

// Short replies that confirm an offer without naming it.
var affirmations = map[string]bool{
	"sim": true, "ok": true, "quero": true, "pode": true, "claro": true,
	"manda": true, "isso": true, "aceito": true, "pode sim": true,
	"quero sim": true, "pode mandar": true, "por favor": true, "sim por favor": true,
}

// RewriteAffirmation compensates for short-context ambiguity: when the last
// assistant turn offered a file and ended with a question, and the new user
// turn is just a short affirmation, the user content is rewritten into an
// explicit instruction referencing the prior offer before it reaches the model.
func RewriteAffirmation(history []models.ConversationTurn, userText string) string {
	last := lastAssistantTurn(history)
	if last == "" {
		return userText
	}

	trimmed := strings.TrimSpace(strings.ToLower(userText))
	trimmed = strings.Trim(trimmed, "!.")
	if !affirmations[trimmed] {
		return userText
	}

	lower := strings.ToLower(last)
	if !strings.HasSuffix(strings.TrimSpace(last), "?") {
		return userText
	}
	offered := false
	for _, word := range offerVocabulary {
		if strings.Contains(lower, word) {
			offered = true
			break
		}
	}
	if !offered {
		return userText
	}

	return fmt.Sprintf("Sim, aceito. Minha resposta confirma a oferta feita na sua última mensagem (%q). Prossiga com o envio do arquivo ou documento oferecido.", last)
}

func lastAssistantTurn(history []models.ConversationTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			return history[i].Content
		}
	}
	return ""
}
