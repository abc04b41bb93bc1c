package knowledge

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/constants"
	"cardassist/pkg/models"
)

func loadIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Load(context.Background(), EmbeddedSource{})
	require.NoError(t, err)
	return idx
}

func TestEmbeddedSource_LoadsAllCategories(t *testing.T) {
	entries, err := EmbeddedSource{}.Load(context.Background())
	require.NoError(t, err)

	seen := map[Category]int{}
	for _, e := range entries {
		seen[e.Category]++
		assert.NotEmpty(t, e.Answer)
		assert.NotEmpty(t, e.Keywords)
	}
	for _, c := range Categories {
		assert.Positive(t, seen[c], "category %s has no entries", c)
	}
}

func TestSearch(t *testing.T) {
	idx := loadIndex(t)

	tests := []struct {
		name         string
		intent       models.Intent
		text         string
		wantCategory Category
		wantQuestion string
	}{
		{
			name:         "repayments keyword",
			intent:       models.IntentRepaymentQuery,
			text:         "How do I set up autopay?",
			wantCategory: CategoryRepayments,
			wantQuestion: "How do I set up autopay?",
		},
		{
			name:         "bill amount scoped",
			intent:       models.IntentBillQuery,
			text:         "What is my bill amount?",
			wantCategory: CategoryBills,
			wantQuestion: "What is my bill amount?",
		},
		{
			name:         "general question searches everything",
			intent:       models.IntentKnowledgeQuery,
			text:         "tell me about autopay",
			wantCategory: CategoryRepayments,
		},
		{
			name:         "scoped miss falls back to global",
			intent:       models.IntentAccountInfo,
			text:         "I still have not got my refund",
			wantCategory: CategoryTransactions,
		},
		{
			name:         "delivery tracking",
			intent:       models.IntentCheckDeliveryStatus,
			text:         "track my card",
			wantCategory: CategoryDelivery,
		},
		{
			name:         "overdue",
			intent:       models.IntentCheckDueAmount,
			text:         "how can I clear my overdue amount",
			wantCategory: CategoryCollections,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Search(tt.intent, tt.text)

			assert.True(t, got.Matched)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.NotEmpty(t, got.Answer)
			if tt.wantQuestion != "" {
				assert.Equal(t, tt.wantQuestion, got.Question)
			}
		})
	}
}

func TestSearch_NoMatch(t *testing.T) {
	idx := loadIndex(t)

	for _, text := range []string{"xyzzy plugh", "", "???"} {
		got := idx.Search(models.IntentUnknown, text)
		assert.False(t, got.Matched)
		assert.Equal(t, constants.NoMatchReply, got.Answer)
		assert.Empty(t, got.Category)
	}
}

func TestSearch_ConcurrentReaders(t *testing.T) {
	idx := loadIndex(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := idx.Search(models.IntentRepaymentQuery, "autopay")
			assert.Equal(t, CategoryRepayments, got.Category)
		}()
	}
	wg.Wait()
}

func TestNewIndex_RejectsInvalidEntries(t *testing.T) {
	_, err := NewIndex([]Entry{{Category: "rewards", Answer: "x"}})
	assert.Error(t, err)

	_, err = NewIndex([]Entry{{Category: CategoryBills, Answer: "  "}})
	assert.Error(t, err)
}

type emptySource struct{}

func (emptySource) Load(context.Context) ([]Entry, error) { return nil, nil }

func TestLoad_EmptySource(t *testing.T) {
	_, err := Load(context.Background(), emptySource{})
	assert.Error(t, err)
}

func TestCategoryFor(t *testing.T) {
	c, ok := CategoryFor(models.IntentCheckDueAmount)
	assert.True(t, ok)
	assert.Equal(t, CategoryCollections, c)

	_, ok = CategoryFor(models.IntentKnowledgeQuery)
	assert.False(t, ok)
}
