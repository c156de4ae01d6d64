package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpg-nexus/backend/pkg/logger"
)

type fakeIndex struct {
	docs     []string
	queryErr error
	queries  int

	added chan string
	addErr error
}

func (f *fakeIndex) Add(ctx context.Context, id, document string, metadata map[string]interface{}) error {
	if f.added != nil {
		f.added <- document
	}
	return f.addErr
}

func (f *fakeIndex) Query(ctx context.Context, query string, topK int, where map[string]interface{}) ([]string, error) {
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.docs, nil
}

type fakeReranker struct {
	ranked []string
	err    error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]string, error) {
	return f.ranked, f.err
}

func testStore(index VectorIndex, reranker Reranker) *Store {
	return NewStore(index, reranker, logger.New(logger.DefaultConfig()), nil)
}

func TestRetrieveEmptyQuerySkipsStore(t *testing.T) {
	index := &fakeIndex{docs: []string{"should not be reached"}}
	s := testStore(index, nil)

	got := s.Retrieve(context.Background(), 1, "")

	assert.Empty(t, got)
	assert.Zero(t, index.queries, "empty query must not hit the store")
}

func TestRetrieveZeroDocumentsReturnsMarker(t *testing.T) {
	s := testStore(&fakeIndex{}, nil)

	got := s.Retrieve(context.Background(), 1, "dragões")

	assert.Equal(t, NoMemoryMarker, got)
}

func TestRetrieveQueryFailureReturnsMarker(t *testing.T) {
	s := testStore(&fakeIndex{queryErr: errors.New("store down")}, nil)

	got := s.Retrieve(context.Background(), 1, "dragões")

	assert.Equal(t, NoMemoryMarker, got)
}

func TestRetrieveUsesRerankedOrder(t *testing.T) {
	index := &fakeIndex{docs: []string{"a", "b", "c"}}
	reranker := &fakeReranker{ranked: []string{"c", "a"}}
	s := testStore(index, reranker)

	got := s.Retrieve(context.Background(), 1, "dragões")

	assert.Equal(t, "c\na", got)
}

func TestRetrieveRerankFailureKeepsSimilarityOrder(t *testing.T) {
	index := &fakeIndex{docs: []string{"a", "b", "c", "d", "e", "f", "g"}}
	reranker := &fakeReranker{err: errors.New("rerank unavailable")}
	s := testStore(index, reranker)

	got := s.Retrieve(context.Background(), 1, "dragões")

	assert.Equal(t, "a\nb\nc\nd\ne", got, "similarity order truncated to keep size")
}

func TestSaveIsFireAndForget(t *testing.T) {
	index := &fakeIndex{added: make(chan string, 1)}
	s := testStore(index, nil)

	s.Save(7, "Jogador: Ataco o goblin.")

	select {
	case doc := <-index.added:
		assert.Equal(t, "Jogador: Ataco o goblin.", doc)
	case <-time.After(2 * time.Second):
		t.Fatal("background save never reached the index")
	}
}

func TestCharacterFilter(t *testing.T) {
	filter := characterFilter(42)
	require.Equal(t, "42", filter["character_id"])
}
