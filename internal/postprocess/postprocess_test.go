package postprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

func sampleCatalog() []models.ProductEntry {
	variantPrice := 259.9
	return []models.ProductEntry{
		{
			ID:        "prod-1",
			CompanyID: "comp-1",
			Name:      "Tênis Runner",
			Kind:      "produto",
			Price:     299.9,
			Active:    true,
			Image:     "https://cdn.example.com/runner.jpg",
			PDF:       "https://cdn.example.com/runner.pdf",
			Variants: []models.VariantEntry{
				{ID: "var-1", Name: "Runner Azul", Color: "azul", Size: "42", Price: &variantPrice, Image: "https://cdn.example.com/runner-azul.jpg"},
			},
		},
		{
			ID:        "prod-2",
			CompanyID: "comp-1",
			Name:      "Camiseta Básica",
			Kind:      "produto",
			Price:     50,
			Active:    true,
		},
	}
}

func TestProcessPlainTextPassesThrough(t *testing.T) {
	result := Process("Olá! Como posso ajudar?", sampleCatalog())

	require.Len(t, result.Chunks, 1)
	assert.Equal(t, models.ChunkText, result.Chunks[0].Kind)
	assert.Equal(t, "Olá! Como posso ajudar?", result.Chunks[0].Content)
	assert.Equal(t, "Olá! Como posso ajudar?", result.DisplayText)
	assert.Empty(t, result.ScriptText)
	assert.Nil(t, result.Document)
}

func TestProcessSplitsAroundImageTag(t *testing.T) {
	draft := "Temos o Tênis Runner! [SHOW_IMAGE: prod-1] Quer saber o tamanho?"
	result := Process(draft, sampleCatalog())

	require.Len(t, result.Chunks, 3)
	assert.Equal(t, models.ChunkText, result.Chunks[0].Kind)
	assert.Equal(t, "Temos o Tênis Runner!", result.Chunks[0].Content)
	assert.Equal(t, models.ChunkImage, result.Chunks[1].Kind)
	assert.Equal(t, "https://cdn.example.com/runner.jpg", result.Chunks[1].URL)
	assert.Equal(t, "Tênis Runner - R$ 299.9", result.Chunks[1].Caption)
	assert.Equal(t, "Quer saber o tamanho?", result.Chunks[2].Content)
}

func TestProcessMultipleImageTagsKeepOrder(t *testing.T) {
	draft := "[SHOW_IMAGE: prod-1] e também [SHOW_IMAGE: var-1] pronta entrega"
	result := Process(draft, sampleCatalog())

	require.Len(t, result.Chunks, 4)
	assert.Equal(t, models.ChunkImage, result.Chunks[0].Kind)
	assert.Equal(t, models.ChunkText, result.Chunks[1].Kind)
	assert.Equal(t, models.ChunkImage, result.Chunks[2].Kind)
	assert.Equal(t, "Tênis Runner Runner Azul (azul, 42) - R$ 259.9", result.Chunks[2].Caption)
	assert.Equal(t, "pronta entrega", result.Chunks[3].Content)
}

func TestProcessResolvesByNameSubstring(t *testing.T) {
	result := Process("Olha só [SHOW_IMAGE: runner]", sampleCatalog())

	require.Len(t, result.Chunks, 2)
	assert.Equal(t, models.ChunkImage, result.Chunks[1].Kind)
	assert.Equal(t, "https://cdn.example.com/runner.jpg", result.Chunks[1].URL)
}

func TestProcessUnresolvedImageBecomesVisibleText(t *testing.T) {
	result := Process("Veja [SHOW_IMAGE: prod-999]", sampleCatalog())

	require.Len(t, result.Chunks, 2)
	assert.Equal(t, models.ChunkText, result.Chunks[1].Kind)
	assert.Equal(t, "(image not found for id prod-999)", result.Chunks[1].Content)
}

func TestProcessProductWithoutImageIsUnresolved(t *testing.T) {
	result := Process("[SHOW_IMAGE: prod-2]", sampleCatalog())

	require.Len(t, result.Chunks, 1)
	assert.Equal(t, models.ChunkText, result.Chunks[0].Kind)
	assert.Contains(t, result.Chunks[0].Content, "prod-2")
}

func TestProcessExtractsDocument(t *testing.T) {
	result := Process("Segue o catálogo! [SEND_PDF: prod-1]", sampleCatalog())

	require.NotNil(t, result.Document)
	assert.Equal(t, "https://cdn.example.com/runner.pdf", result.Document.URL)
	assert.Equal(t, "Tênis Runner.pdf", result.Document.FileName)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "Segue o catálogo!", result.Chunks[0].Content)
}

func TestProcessUnresolvedPDFBecomesVisibleText(t *testing.T) {
	result := Process("Segue [SEND_PDF: prod-2]", sampleCatalog())

	assert.Nil(t, result.Document)
	assert.Contains(t, result.DisplayText, "documento não encontrado")
}

func TestProcessExtractsAudioScript(t *testing.T) {
	draft := "Temos sim, custa R$ 299.9.\n[AUDIO] Oi! Temos sim, custa duzentos e noventa e nove e noventa."
	result := Process(draft, sampleCatalog())

	assert.Equal(t, "Temos sim, custa R$ 299.9.", result.DisplayText)
	assert.Equal(t, "Oi! Temos sim, custa duzentos e noventa e nove e noventa.", result.ScriptText)
}

func TestProcessNoRawDirectivesSurvive(t *testing.T) {
	draft := "a [SHOW_IMAGE: prod-1] b [SEND_PDF: prod-1] c [SHOW_IMAGE: nada] [AUDIO] roteiro"
	result := Process(draft, sampleCatalog())

	for _, chunk := range result.Chunks {
		assert.NotContains(t, chunk.Content, "[SHOW_IMAGE")
		assert.NotContains(t, chunk.Content, "[SEND_PDF")
		assert.NotContains(t, chunk.Content, "[AUDIO]")
	}
	assert.False(t, strings.Contains(result.DisplayText, "[SEND_PDF"))
}

func TestFormatPriceDropsTrailingZeros(t *testing.T) {
	assert.Equal(t, "49.9", models.FormatPrice(49.9))
	assert.Equal(t, "50", models.FormatPrice(50))
	assert.Equal(t, "1250.55", models.FormatPrice(1250.55))
}
