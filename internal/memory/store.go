package memory

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rpg-nexus/backend/pkg/logger"
	"rpg-nexus/backend/shared/observability"
)

// NoMemoryMarker is returned when similarity search finds nothing.
// Narrator prompts always receive a memory block, never an absent field.
const NoMemoryMarker = "Nenhuma memória relevante encontrada."

const (
	defaultTopK = 10
	defaultKeep = 5
	saveTimeout = 30 * time.Second
)

// VectorIndex is the narrow surface the store needs from the vector
// database.
type VectorIndex interface {
	Add(ctx context.Context, id, document string, metadata map[string]interface{}) error
	Query(ctx context.Context, query string, topK int, where map[string]interface{}) ([]string, error)
}

// Store is the character memory layer: past interactions indexed by
// embedding similarity, refined by a rerank pass on retrieval.
type Store struct {
	index    VectorIndex
	reranker Reranker
	log      *logger.Logger
	metrics  *observability.Metrics
	topK     int
	keep     int
}

// NewStore builds a memory store over the given index and reranker. The
// reranker may be nil, in which case similarity order is used as-is.
func NewStore(index VectorIndex, reranker Reranker, log *logger.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		index:    index,
		reranker: reranker,
		log:      log,
		metrics:  metrics,
		topK:     defaultTopK,
		keep:     defaultKeep,
	}
}

func characterFilter(characterID uint) map[string]interface{} {
	return map[string]interface{}{
		"character_id": strconv.FormatUint(uint64(characterID), 10),
	}
}

// Save writes one interaction tagged with the character id. It is
// fire-and-forget: the write happens in the background and a failure is
// logged, never surfaced, so narrative flow is not blocked on the index.
func (s *Store) Save(characterID uint, text string) {
	id := uuid.New().String()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.index.Add(ctx, id, text, characterFilter(characterID)); err != nil {
			s.log.Warn("failed to save interaction to memory",
				"character_id", characterID,
				"error", err.Error(),
			)
		}
	}()
}

// Retrieve returns the memory block for a prompt: the topK most similar
// past interactions for the character, reranked against the query, best 5
// kept, newline-joined. An empty query short-circuits to "" with no store
// access. Zero matches return NoMemoryMarker.
func (s *Store) Retrieve(ctx context.Context, characterID uint, query string) string {
	if query == "" {
		return ""
	}

	s.metrics.CountMemoryLookup(ctx)

	docs, err := s.index.Query(ctx, query, s.topK, characterFilter(characterID))
	if err != nil {
		s.log.Warn("memory query failed",
			"character_id", characterID,
			"error", err.Error(),
		)
		return NoMemoryMarker
	}
	if len(docs) == 0 {
		return NoMemoryMarker
	}

	relevant := s.rerank(ctx, query, docs)
	return strings.Join(relevant, "\n")
}

// rerank refines similarity candidates; a rerank failure degrades to the
// original similarity order.
func (s *Store) rerank(ctx context.Context, query string, docs []string) []string {
	if s.reranker != nil {
		ranked, err := s.reranker.Rerank(ctx, query, docs, s.keep)
		if err == nil && len(ranked) > 0 {
			return ranked
		}
		if err != nil {
			s.log.Warn("rerank failed, keeping similarity order", "error", err.Error())
		}
	}
	if len(docs) > s.keep {
		docs = docs[:s.keep]
	}
	return docs
}
