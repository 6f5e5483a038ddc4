package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
)

// BeatStore persists story beats (one per successful turn) as vectors
// so later turns can recall related moments from earlier in the
// session.
type BeatStore struct {
	vectors   *VectorStore
	embedding *EmbeddingService
}

func NewBeatStore(vectors *VectorStore, embedding *EmbeddingService) *BeatStore {
	return &BeatStore{vectors: vectors, embedding: embedding}
}

// StoreBeat embeds and stores one turn's beat. The point id is derived
// from session and turn so re-storing the same turn overwrites rather
// than duplicates.
func (s *BeatStore) StoreBeat(ctx context.Context, sessionID string, turn int, choice, narration string) error {
	text := beatText(choice, narration)
	vec, err := s.embedding.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed beat: %w", err)
	}
	payload := map[string]any{
		"session_id": sessionID,
		"turn":       int64(turn),
		"choice":     choice,
		"summary":    summarize(narration, 300),
	}
	return s.vectors.Upsert(ctx, beatPointID(sessionID, turn), vec, payload)
}

// RelatedBeats returns summaries of earlier beats in this session most
// similar to the query text, oldest first is not guaranteed; results
// come back in similarity order.
func (s *BeatStore) RelatedBeats(ctx context.Context, sessionID, query string, limit int) ([]string, error) {
	vec, err := s.embedding.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	points, err := s.vectors.Search(ctx, sessionID, vec, limit)
	if err != nil {
		return nil, err
	}
	beats := make([]string, 0, len(points))
	for _, pt := range points {
		turn := pt.Payload["turn"].GetIntegerValue()
		summary := pt.Payload["summary"].GetStringValue()
		if summary == "" {
			continue
		}
		beats = append(beats, fmt.Sprintf("turn %d: %s", turn, summary))
	}
	log.Printf("[BeatStore] recalled %d beats for session %s", len(beats), sessionID)
	return beats, nil
}

func beatText(choice, narration string) string {
	if choice == "" {
		return narration
	}
	return choice + "\n" + narration
}

// beatPointID folds session id and turn into a stable 64-bit point id.
func beatPointID(sessionID string, turn int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return h.Sum64()>>16<<16 | uint64(turn)&0xFFFF
}

func summarize(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
