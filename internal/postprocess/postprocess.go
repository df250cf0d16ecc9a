// Package postprocess turns raw model output into an ordered sequence of
// deliverable chunks. Directive tags are resolved against the catalog;
// whatever cannot be resolved becomes a visible inline explanation, never a
// silent drop, and the final output never contains a raw directive token.
package postprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// AudioScriptMarker delimits a trailing spoken-script block in model output.
const AudioScriptMarker = "[AUDIO]"

var (
	showImageRe = regexp.MustCompile(`\[SHOW_IMAGE:\s*([^\]]+)\]`)
	sendPDFRe   = regexp.MustCompile(`\[SEND_PDF:\s*([^\]]+)\]`)
)

// Result is everything the dispatcher needs from one model reply.
type Result struct {
	Chunks      []models.ResponseChunk
	DisplayText string
	ScriptText  string
	Document    *models.DocumentArtifact
}

// Process resolves directive tags in the draft reply against the catalog.
func Process(draft string, catalog []models.ProductEntry) Result {
	display, script := extractScript(draft)
	display, document := extractDocument(display, catalog)
	chunks := splitChunks(display, catalog)

	// DisplayText is the concatenation of the final text chunks, used for
	// persistence and as TTS fallback when no script block was provided.
	var texts []string
	for _, c := range chunks {
		if c.Kind == models.ChunkText {
			texts = append(texts, c.Content)
		}
	}

	return Result{
		Chunks:      chunks,
		DisplayText: strings.Join(texts, "\n"),
		ScriptText:  script,
		Document:    document,
	}
}

// extractScript detaches the trailing spoken-script block, when present.
func extractScript(text string) (display, script string) {
	idx := strings.LastIndex(text, AudioScriptMarker)
	if idx < 0 {
		return text, ""
	}
	display = strings.TrimSpace(text[:idx])
	script = strings.TrimSpace(text[idx+len(AudioScriptMarker):])
	return display, script
}

// extractDocument resolves SEND_PDF directives. The first resolvable tag
// becomes the side artifact; every tag is stripped or replaced so no raw
// token survives.
func extractDocument(text string, catalog []models.ProductEntry) (string, *models.DocumentArtifact) {
	var artifact *models.DocumentArtifact

	out := sendPDFRe.ReplaceAllStringFunc(text, func(tag string) string {
		id := strings.TrimSpace(sendPDFRe.FindStringSubmatch(tag)[1])
		for _, p := range catalog {
			if p.ID == id && p.PDF != "" {
				if artifact == nil {
					artifact = &models.DocumentArtifact{
						URL:      p.PDF,
						FileName: p.Name + ".pdf",
					}
				}
				return ""
			}
		}
		log.Warn().Str("id", id).Msg("SEND_PDF directive did not match any catalog PDF")
		return fmt.Sprintf("(documento não encontrado para o id %s)", id)
	})

	return strings.TrimSpace(out), artifact
}

// splitChunks interleaves text chunks with one image chunk per SHOW_IMAGE tag,
// in order of appearance.
func splitChunks(text string, catalog []models.ProductEntry) []models.ResponseChunk {
	var chunks []models.ResponseChunk
	rest := text

	for {
		loc := showImageRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		before := strings.TrimSpace(rest[:loc[0]])
		id := strings.TrimSpace(rest[loc[2]:loc[3]])
		rest = rest[loc[1]:]

		if before != "" {
			chunks = append(chunks, models.ResponseChunk{Kind: models.ChunkText, Content: before})
		}

		if url, caption, ok := resolveImage(id, catalog); ok {
			chunks = append(chunks, models.ResponseChunk{Kind: models.ChunkImage, URL: url, Caption: caption})
		} else {
			log.Warn().Str("id", id).Msg("SHOW_IMAGE directive did not resolve to an image")
			chunks = append(chunks, models.ResponseChunk{
				Kind:    models.ChunkText,
				Content: fmt.Sprintf("(image not found for id %s)", id),
			})
		}
	}

	if trailing := strings.TrimSpace(rest); trailing != "" {
		chunks = append(chunks, models.ResponseChunk{Kind: models.ChunkText, Content: trailing})
	}
	return chunks
}

// resolveImage maps a directive id to an image URL and caption. Resolution
// order: exact product id, case-insensitive substring on product name, exact
// variant id. A match without an image field counts as unresolved.
func resolveImage(id string, catalog []models.ProductEntry) (url, caption string, ok bool) {
	for _, p := range catalog {
		if p.ID == id {
			if p.Image == "" {
				return "", "", false
			}
			return p.Image, productCaption(p), true
		}
	}

	lowered := strings.ToLower(id)
	for _, p := range catalog {
		if strings.Contains(strings.ToLower(p.Name), lowered) {
			if p.Image == "" {
				return "", "", false
			}
			return p.Image, productCaption(p), true
		}
	}

	for _, p := range catalog {
		for _, v := range p.Variants {
			if v.ID == id {
				if v.Image == "" {
					return "", "", false
				}
				return v.Image, variantCaption(p, v), true
			}
		}
	}

	return "", "", false
}

func productCaption(p models.ProductEntry) string {
	return fmt.Sprintf("%s - R$ %s", p.Name, models.FormatPrice(p.Price))
}

func variantCaption(p models.ProductEntry, v models.VariantEntry) string {
	name := p.Name
	if v.Name != "" {
		name = fmt.Sprintf("%s %s", p.Name, v.Name)
	}

	var attrs []string
	if v.Color != "" {
		attrs = append(attrs, v.Color)
	}
	if v.Size != "" {
		attrs = append(attrs, v.Size)
	}
	if len(attrs) > 0 {
		name = fmt.Sprintf("%s (%s)", name, strings.Join(attrs, ", "))
	}

	price := p.Price
	if v.Price != nil {
		price = *v.Price
	}
	return fmt.Sprintf("%s - R$ %s", name, models.FormatPrice(price))
}
