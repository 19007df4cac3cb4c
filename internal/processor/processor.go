package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/knowledge"
)

const collectionName = "qa_session"

// Processor splits raw text into chunks and turns chunks into a
// queryable knowledge base.
type Processor struct {
	cfg      *config.RAGConfig
	embedder embedding.Embedder
}

func NewProcessor(cfg *config.RAGConfig, embedder embedding.Embedder) *Processor {
	return &Processor{cfg: cfg, embedder: embedder}
}

// SplitText splits the combined text into overlapping chunks of at most
// ChunkSize characters, preferring a break at whitespace or sentence end
// near the window edge.
func (p *Processor) SplitText(content string) []string {
	return chunkContent(content, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
}

// CreateEmbeddings embeds the chunks and loads them into a fresh
// in-memory knowledge base.
func (p *Processor) CreateEmbeddings(ctx context.Context, chunks []string) (*knowledge.Base, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := p.embedder.EmbedQuery(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d: %w", i+1, err)
		}
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		docs = append(docs, chromem.Document{
			ID:        id,
			Content:   chunk,
			Embedding: vector,
		})
	}

	base, err := knowledge.NewMemoryBase(collectionName)
	if err != nil {
		return nil, err
	}
	if err := base.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return base, nil
}

// chunkContent chunks content into pieces of maxChars with overlapChars
// carried over between neighbours.
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// look for a space or sentence end within the last 10% of the window
		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(content[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= contentLen {
			break
		}

		// advance relative to the adjusted break so no text falls between
		// windows when the break moved end back
		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
