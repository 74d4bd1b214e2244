package question

import (
	"testing"

	"quizroom/pkg/types"
)

func testBank() map[string][]*types.Question {
	return map[string][]*types.Question{
		"level1": {
			{ID: "q1", Content: "one", Difficulty: 1},
			{ID: "q2", Content: "two", Difficulty: 1},
			{ID: "q3", Content: "three", Difficulty: 1},
		},
		"level2": {
			{ID: "q4", Content: "four", Difficulty: 2},
		},
		"level9": {},
	}
}

func TestProvider_PickRandom(t *testing.T) {
	provider := NewProvider(testBank())

	q, ok := provider.PickRandom("level1")
	if !ok || q == nil {
		t.Fatal("expected a question for level1")
	}
	if q.ID != "q1" && q.ID != "q2" && q.ID != "q3" {
		t.Errorf("picked question outside the level pool: %s", q.ID)
	}
}

func TestProvider_PickRandomCoversPool(t *testing.T) {
	provider := NewProvider(testBank())

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		q, ok := provider.PickRandom("level1")
		if !ok {
			t.Fatal("pick should succeed")
		}
		seen[q.ID] = true
	}

	if len(seen) != 3 {
		t.Errorf("expected all 3 questions over 200 picks, saw %d", len(seen))
	}
}

func TestProvider_PickRandomUnknownLevel(t *testing.T) {
	provider := NewProvider(testBank())

	if q, ok := provider.PickRandom("level7"); ok || q != nil {
		t.Error("unknown level should return (nil, false)")
	}
}

func TestProvider_PickRandomEmptyLevel(t *testing.T) {
	provider := NewProvider(testBank())

	// level9 has an entry but no questions; must behave like unknown.
	if q, ok := provider.PickRandom("level9"); ok || q != nil {
		t.Error("empty level should return (nil, false)")
	}
}

func TestProvider_Levels(t *testing.T) {
	provider := NewProvider(testBank())

	levels := provider.Levels()
	if len(levels) != 2 {
		t.Fatalf("expected 2 non-empty levels, got %v", levels)
	}
	if levels[0] != "level1" || levels[1] != "level2" {
		t.Errorf("levels should be sorted, got %v", levels)
	}
}
