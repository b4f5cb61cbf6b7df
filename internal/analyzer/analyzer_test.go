package analyzer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/prosepolisher/internal/config"
	"github.com/rcliao/prosepolisher/internal/generate"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/ngram"
	"github.com/rcliao/prosepolisher/internal/rules"
	"github.com/rcliao/prosepolisher/internal/session"
)

func testSettings() *config.Settings {
	s := config.DefaultSettings()
	s.LeaderboardUpdateCycle = 3
	s.Blacklist = map[string]int{"suddenly": 3}
	return &s
}

func TestSuddenlyScenario(t *testing.T) {
	a := New(testSettings())

	a.RecordMessage("Suddenly, the door opened.", 1)
	a.RecordMessage("She suddenly laughed.", 3)
	res := a.RecordMessage("It was suddenly quiet.", 5)
	require.True(t, res.Merged)

	lb := a.Leaderboard()
	assert.False(t, lb.Fallback)
	score, ok := lb.Score("suddenly")
	require.True(t, ok, "leaderboard: %+v", lb)
	assert.Equal(t, 9.0, score)

	for _, e := range a.Entries() {
		if ngram.ContainsSeq(ngram.Tokenize(e.Text), []string{"suddenly"}) {
			continue
		}
		assert.Less(t, e.Score, score, e.Text)
		_, shown := lb.Score(e.Text)
		assert.False(t, shown, "%q should be below the display threshold", e.Text)
	}
}

func TestFallbackLeaderboard(t *testing.T) {
	a := New(testSettings(), WithFallbackSize(2))
	a.RecordMessage("Ozone glitters brightly tonight.", 1)

	lb := a.Leaderboard()
	assert.True(t, lb.Fallback)
	assert.Len(t, lb.Remaining, 2)
	assert.Empty(t, lb.Merged)

	refreshed := a.RefreshLeaderboard()
	assert.False(t, refreshed.Fallback)
	assert.False(t, a.Leaderboard().Fallback)
}

func TestLeaderboardIsACopy(t *testing.T) {
	a := New(testSettings())
	for i := 1; i <= 3; i++ {
		a.RecordMessage("She suddenly laughed.", i)
	}
	lb := a.Leaderboard()
	for k := range lb.Merged {
		lb.Merged[k] = -1
	}
	for k, v := range a.Leaderboard().Merged {
		assert.NotEqual(t, -1.0, v, k)
	}
}

func TestDuplicateMessagesCountedOnce(t *testing.T) {
	a := New(testSettings())
	first := a.RecordMessage("A shiver ran down her spine.", 7)
	again := a.RecordMessage("A shiver ran down her spine.", 7)

	assert.False(t, first.Duplicate)
	assert.True(t, again.Duplicate)
	assert.Equal(t, 1, a.Messages())
	for _, e := range a.Entries() {
		assert.Equal(t, 1, e.Count, e.Text)
	}
}

func TestDeferredMessagesRunInOrder(t *testing.T) {
	gate := session.NewGate()
	a := New(testSettings(), WithGate(gate))

	for i := 1; i <= 3; i++ {
		res := a.RecordMessage(fmt.Sprintf("Marker%d glows brightly.", i), i*2)
		assert.True(t, res.Deferred)
	}
	assert.Equal(t, 0, a.Messages())

	assert.Equal(t, 3, gate.MarkReady())
	assert.Equal(t, 3, a.Messages())
	for i := 1; i <= 3; i++ {
		var seen int
		for _, e := range a.Entries() {
			if e.Text == fmt.Sprintf("marker%d glows", i) {
				seen = e.LastSeen
			}
		}
		assert.Equal(t, i, seen, "message %d processed out of order", i)
	}
}

func TestCyclesAndState(t *testing.T) {
	s := testSettings()
	s.PruningCycle = 5
	s.IsDynamicEnabled = true
	s.DynamicTriggerCount = 4
	a := New(s)
	assert.Equal(t, Idle, a.State())

	var merges, due, prunes int
	for i := 1; i <= 12; i++ {
		res := a.RecordMessage(fmt.Sprintf("Unique%d phrase%d here.", i, i), i)
		if res.Merged {
			merges++
		}
		if res.GenerationDue {
			due++
		}
		if res.Pruned > 0 {
			prunes++
		}
	}
	assert.Equal(t, 4, merges)
	assert.Equal(t, 3, due)
	// Nothing is stale at the first pruning cycle yet.
	assert.Equal(t, 1, prunes)
	assert.Equal(t, Tracking, a.State())

	a.Reset()
	assert.Equal(t, Idle, a.State())
	assert.Equal(t, 0, a.Messages())
	assert.Empty(t, a.Entries())
	assert.True(t, a.Leaderboard().Fallback)
}

func TestOnMerge(t *testing.T) {
	a := New(testSettings())
	var got int
	a.OnMerge(func(lb model.Leaderboard) { got = lb.ComputedAt })
	for i := 1; i <= 3; i++ {
		a.RecordMessage("She suddenly laughed.", i)
	}
	assert.Equal(t, 3, got)
}

func TestSerializeRoundTrip(t *testing.T) {
	a := New(testSettings())
	for i, m := range []string{"Suddenly, the door opened.", "She suddenly laughed.", "It was suddenly quiet.", "Her eyes sparkled."} {
		a.RecordMessage(m, i)
	}
	blob, err := a.Serialize()
	require.NoError(t, err)

	b := New(testSettings())
	require.NoError(t, b.Deserialize(blob))
	assert.Equal(t, a.Leaderboard(), b.Leaderboard())
	assert.Equal(t, a.Entries(), b.Entries())
	assert.Equal(t, a.Messages(), b.Messages())

	res := b.RecordMessage("anything at all", 0)
	assert.True(t, res.Duplicate)

	assert.Error(t, b.Deserialize([]byte(`{"version": 99}`)))
	assert.Error(t, b.Deserialize([]byte(`not json`)))
	assert.Equal(t, a.Messages(), b.Messages())
}

func TestNilSettingsUsesDefaults(t *testing.T) {
	a := New(nil)
	assert.Equal(t, config.DefaultSettings().LeaderboardUpdateCycle, a.Settings().LeaderboardUpdateCycle)
}

func seededAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	a := New(testSettings(), opts...)
	for i := 1; i <= 3; i++ {
		a.RecordMessage("A shiver ran down her spine.", i)
	}
	require.NotEmpty(t, a.CandidatePhrases(5))
	return a
}

func TestGenerateRules(t *testing.T) {
	a := seededAnalyzer(t)
	store := rules.New()
	require.NoError(t, store.LoadDefaultStatic())

	var req generate.Request
	gen := generate.GeneratorFunc(func(_ context.Context, r generate.Request) (string, error) {
		req = r
		return `[{"scriptName":"Shiver","findRegex":"a shiver ran down (her|his) spine","replaceString":"{{random:$1 skin prickled,a tremor went through $1}}"}]`, nil
	})

	added, err := a.GenerateRules(context.Background(), gen, store)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Len(t, store.Dynamic(), 1)
	assert.NotEmpty(t, req.Phrases)
	assert.Len(t, req.ExistingRules, len(store.Static()))
}

func TestGenerateRulesAllOrNothing(t *testing.T) {
	a := seededAnalyzer(t)
	store := rules.New()

	gen := generate.GeneratorFunc(func(context.Context, generate.Request) (string, error) {
		return `[
			{"scriptName":"ok","findRegex":"spine","replaceString":"back"},
			{"scriptName":"broken","findRegex":"(spine","replaceString":"back"}
		]`, nil
	})
	_, err := a.GenerateRules(context.Background(), gen, store)
	assert.ErrorIs(t, err, generate.ErrGenerationFailed)
	assert.Empty(t, store.Dynamic())
}

func TestGenerateRulesTimeout(t *testing.T) {
	a := seededAnalyzer(t, WithGenerateTimeout(20*time.Millisecond))
	store := rules.New()

	gen := generate.GeneratorFunc(func(ctx context.Context, _ generate.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := a.GenerateRules(context.Background(), gen, store)
	assert.ErrorIs(t, err, generate.ErrGenerationFailed)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, store.Dynamic())
}

func TestGenerateRulesMissingDependency(t *testing.T) {
	a := New(testSettings())
	_, err := a.GenerateRules(context.Background(), nil, rules.New())
	assert.ErrorIs(t, err, ErrMissingDependency)
}
