package replace

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/regexcache"
)

func newEngine() (*Engine, *regexcache.Cache) {
	c := regexcache.New()
	return New(c, WithRand(rand.New(rand.NewSource(1)))), c
}

func TestApply_LiteralBackreference(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{{ID: "r", FindRegex: `began to (\w+)`, ReplaceString: "started to $1"}}

	for i := 0; i < 5; i++ {
		assert.Equal(t, "He started to smile.", e.Apply("He began to smile.", rules))
	}
}

func TestApply_RandomIsLegalChoice(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{{ID: "r", FindRegex: `\bsmiled\b`, ReplaceString: "{{random:grinned,smirked,beamed}}"}}
	shape := regexp.MustCompile(`^She (grinned|smirked|beamed)\. He (grinned|smirked|beamed)\.$`)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		out := e.Apply("She smiled. He smiled.", rules)
		m := shape.FindStringSubmatch(out)
		require.NotNil(t, m, "illegal output %q", out)
		seen[m[1]] = true
	}
	assert.Len(t, seen, 3, "every option should eventually be chosen")
}

func TestApply_RandomWithCaptureGroups(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{{
		ID:            "r",
		FindRegex:     `(\w+)'s eyes sparkled( with mischief)?`,
		ReplaceString: "{{random:$1 looked amused$2,$1 grinned}}",
	}}

	for i := 0; i < 50; i++ {
		out := e.Apply("Mara's eyes sparkled.", rules)
		assert.Contains(t, []string{"Mara looked amused.", "Mara grinned."}, out)
	}
}

func TestApply_MultiDigitGroupRefMatchesLiteralPath(t *testing.T) {
	e, _ := newEngine()
	literal := []model.Rule{{ID: "lit", FindRegex: `began to (\w+)`, ReplaceString: "x$10"}}
	random := []model.Rule{{ID: "rnd", FindRegex: `began to (\w+)`, ReplaceString: "{{random:x$10,x$10}}"}}

	want := e.Apply("She began to smile.", literal)
	assert.Equal(t, "She xsmile0.", want)
	assert.Equal(t, want, e.Apply("She began to smile.", random))
}

func TestApply_UnknownGroupRefStaysLiteral(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{{ID: "r", FindRegex: `began to (\w+)`, ReplaceString: "{{random:$1 $5,$1 $5}}"}}
	assert.Equal(t, "She smile $5.", e.Apply("She began to smile.", rules))
}

func TestApply_RulesChainInOrder(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{
		{ID: "a", FindRegex: "cat", ReplaceString: "dog"},
		{ID: "b", FindRegex: "dog", ReplaceString: "wolf"},
	}
	assert.Equal(t, "a wolf", e.Apply("a cat", rules))

	reversed := []model.Rule{rules[1], rules[0]}
	assert.Equal(t, "a dog", e.Apply("a cat", reversed))
}

func TestApply_InvalidRuleSkipped(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{
		{ID: "bad", FindRegex: "(oops", ReplaceString: "x"},
		{ID: "good", FindRegex: "shivers down (her|his) spine", ReplaceString: "a chill"},
	}
	assert.Equal(t, "She felt a chill.", e.Apply("She felt shivers down her spine.", rules))
}

func TestApply_EmptyTextUntouched(t *testing.T) {
	e, c := newEngine()
	rules := []model.Rule{{ID: "r", FindRegex: "x", ReplaceString: "y"}}
	assert.Equal(t, "", e.Apply("", rules))
	assert.Equal(t, 0, c.Len(), "no rule should be compiled for empty text")
}

func TestApply_EmptyRandomFallsBackToLiteral(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{{ID: "r", FindRegex: "smiled", ReplaceString: "{{random:}}"}}
	assert.NotPanics(t, func() {
		assert.Equal(t, "she {{random:}}", e.Apply("she smiled", rules))
	})
}

func TestApply_CaseInsensitiveGlobal(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{{ID: "r", FindRegex: "ministrations", ReplaceString: "care"}}
	assert.Equal(t, "care and care", e.Apply("Ministrations and MINISTRATIONS", rules))
}

func TestApply_TrimStrings(t *testing.T) {
	e, _ := newEngine()
	rules := []model.Rule{{
		ID:            "r",
		FindRegex:     `said (\w+)ly`,
		ReplaceString: "said, $1",
		TrimStrings:   []string{"soft"},
	}}
	assert.Equal(t, "she said, ", e.Apply("she said softly", rules))
}

func TestApply_CacheInvalidation(t *testing.T) {
	e, c := newEngine()
	rule := model.Rule{ID: "r", FindRegex: "old", ReplaceString: "new"}
	assert.Equal(t, "new value", e.Apply("old value", []model.Rule{rule}))

	rule.ReplaceString = "{{random:fresh}}"
	rule.FindRegex = "value"
	c.Clear()
	assert.Equal(t, "old fresh", e.Apply("old value", []model.Rule{rule}))
}
