package orchestrator

import (
	"fmt"
	"strings"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// System context is composed from discrete sections joined in a fixed order.
// Each section is independently testable; nothing mutates a shared string.

const defaultPersona = "Você é um atendente virtual educado e objetivo que responde clientes pelo WhatsApp."

const antiHallucinationRules = `REGRAS DE VERACIDADE:
- Nunca invente produtos, preços, prazos ou horários. Use somente os dados fornecidos neste contexto e os resultados das ferramentas.
- Se não souber uma informação, diga que vai verificar com a equipe.
- Para listar produtos ou serviços disponíveis, use sempre a ferramenta list_available_products; nunca responda de memória da conversa.`

const responseFormatRules = `FORMATO DAS RESPOSTAS:
- Para mostrar a foto de um item, insira a tag [SHOW_IMAGE: <id do item>] no ponto da mensagem onde a foto deve aparecer.
- Para enviar o catálogo em PDF de um item, insira a tag [SEND_PDF: <id do item>].
- Só use essas tags para itens que realmente possuem imagem ou PDF.
- Se quiser fornecer um roteiro falado para áudio, acrescente ao final da mensagem o marcador [AUDIO] seguido do texto a ser falado.`

const continuityRules = `CONTINUIDADE:
- A conversa abaixo já está em andamento. Não se apresente novamente e não repita saudações.
- Mantenha o contexto das mensagens anteriores ao responder.`

const audioInstructions = `MENSAGEM DE VOZ:
- O cliente enviou uma mensagem de voz transcrita. Responda de forma natural e fácil de falar em voz alta, sem listas longas nem formatação.`

// BuildSystemPrompt composes the system context for one request. The catalog
// block is always computed fresh from the current catalog state so the model
// cannot assert stale inventory.
func BuildSystemPrompt(tenant *models.TenantConfig, hasHistory, wasAudio bool) string {
	persona := strings.TrimSpace(tenant.SystemPrompt)
	if persona == "" {
		persona = defaultPersona
	}

	sections := []string{
		persona,
		antiHallucinationRules,
		responseFormatRules,
		catalogSection(tenant),
	}
	if kb := strings.TrimSpace(tenant.KnowledgeBase); kb != "" {
		sections = append(sections, "BASE DE CONHECIMENTO:\n"+kb)
	}
	if hasHistory {
		sections = append(sections, continuityRules)
	}
	if wasAudio {
		sections = append(sections, audioInstructions)
	}

	return strings.Join(sections, "\n\n")
}

// catalogSection renders the availability block from the tenant's catalog,
// filtered to items the tenant owns that are currently active.
func catalogSection(tenant *models.TenantConfig) string {
	var b strings.Builder
	b.WriteString("ITENS DISPONÍVEIS AGORA:")

	count := 0
	for _, p := range tenant.Catalog {
		if !p.Active || p.CompanyID != tenant.CompanyID {
			continue
		}
		count++
		price := "R$ " + models.FormatPrice(p.Price)
		if p.PriceHidden {
			price = "preço sob consulta"
		}
		b.WriteString(fmt.Sprintf("\n- [id %s] %s (%s) — %s", p.ID, p.Name, p.Kind, price))
		if len(p.Variants) > 0 {
			b.WriteString(fmt.Sprintf(" — %d variações", len(p.Variants)))
		}
	}
	if count == 0 {
		b.WriteString("\n(nenhum item ativo no momento)")
	}
	return b.String()
}
