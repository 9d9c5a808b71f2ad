// Package company extracts and canonicalizes company names from document
// chunks and user queries. Extraction is heuristic; the semantic resolver
// reconciles a candidate against names already stored in the vector store.
package company

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"finsight/backend/internal/text"
)

const (
	// maxCandidateWords is the word-count ceiling for a chunk line to be
	// considered a clean extracted company name.
	maxCandidateWords = 6

	// fallbackChunkWindow is how many leading chunks the all-caps fallback
	// scans when no short candidate line matched.
	fallbackChunkWindow = 20

	// SemanticThreshold is the minimum similarity score for accepting a
	// stored company name over the extracted candidate.
	SemanticThreshold = 0.6
)

var (
	legalMarkerRe = regexp.MustCompile(`(?i)\b(Inc\.?|Incorporated|Corporation|Corp\.?|Ltd\.?|LLC|PLC|Company)\b`)
	allCapsRe     = regexp.MustCompile(`\b([A-Z][A-Z0-9,.\-& ]{2,100}?(?:INC\.?|CORP\.?|LTD\.?|LLC|COMPANY|CORPORATION|LIMITED))\b`)
	queryPhraseRe = regexp.MustCompile(`\b(?:of|for)\s+((?:[A-Z][A-Za-z0-9&.,]*\s?)+)`)
	queryPunctRe  = regexp.MustCompile(`[.,]`)
)

// ExtractFromDocument scans chunk texts for the document's company name.
// Short lines carrying a legal-entity marker win, shortest first — shorter
// matches tend to be cleaner extracted names. Falls back to an all-caps run
// ending in a legal suffix within the leading chunks. Returns "" when
// neither heuristic fires.
func ExtractFromDocument(chunks []string) string {
	var candidates []string
	for _, c := range chunks {
		t := strings.TrimSpace(c)
		if len(t) < 3 || len(strings.Fields(t)) > maxCandidateWords {
			continue
		}
		if legalMarkerRe.MatchString(t) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			return len(candidates[i]) < len(candidates[j])
		})
		return candidates[0]
	}

	head := chunks
	if len(head) > fallbackChunkWindow {
		head = head[:fallbackChunkWindow]
	}
	if m := allCapsRe.FindStringSubmatch(strings.Join(head, " ")); m != nil {
		return titleCase(strings.TrimSpace(m[1]))
	}
	return ""
}

// ExtractFromQuery pulls a company name out of phrasings like
// "revenue of Acme Corp" or "debt ratio for Tesla". The captured phrase is
// returned uppercased with punctuation stripped, or "" if nothing matched.
func ExtractFromQuery(query string) string {
	m := queryPhraseRe.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	name := queryPunctRe.ReplaceAllString(m[1], "")
	return strings.ToUpper(strings.TrimSpace(name))
}

// Embedder is the subset of the embedding client the resolver needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NameSearcher finds the stored company name closest to a vector.
type NameSearcher interface {
	TopCompany(ctx context.Context, vector []float32) (name string, score float32, err error)
}

// ResolveSemantic reconciles a candidate name against names already in the
// store: the candidate is embedded, matched top-1, and the stored name is
// accepted only above SemanticThreshold. Best-effort — on any failure the
// candidate is returned unchanged.
func ResolveSemantic(ctx context.Context, candidate string, emb Embedder, search NameSearcher) string {
	normalized := text.NormalizeCompany(candidate)
	if normalized == "" {
		return candidate
	}

	vec, err := emb.Embed(ctx, normalized)
	if err != nil {
		slog.WarnContext(ctx, "semantic company resolution skipped", "error", err, "candidate", candidate)
		return candidate
	}

	name, score, err := search.TopCompany(ctx, vec)
	if err != nil {
		slog.WarnContext(ctx, "semantic company lookup failed", "error", err, "candidate", candidate)
		return candidate
	}
	if name != "" && score > SemanticThreshold {
		slog.DebugContext(ctx, "semantic company match", "candidate", candidate, "resolved", name, "score", score)
		return name
	}
	return candidate
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
