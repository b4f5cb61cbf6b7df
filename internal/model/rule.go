// Package model defines the core rule and analysis data types.
package model

import (
	"regexp"
	"strings"
)

const (
	StaticIDPrefix  = "STATIC_"
	DynamicIDPrefix = "DYN_"
)

// DefaultPlacement is used when a rule carries no placement flags.
// Values follow the host's regex placement enum (user input, AI output,
// slash commands, world info, reasoning).
var DefaultPlacement = []int{0, 2, 3, 5, 6}

// Rule is a find/replace directive applied to message text.
type Rule struct {
	ID              string   `json:"id"`
	ScriptName      string   `json:"scriptName"`
	FindRegex       string   `json:"findRegex"`
	ReplaceString   string   `json:"replaceString"`
	TrimStrings     []string `json:"trimStrings"`
	Placement       []int    `json:"placement"`
	Disabled        bool     `json:"disabled"`
	MarkdownOnly    bool     `json:"markdownOnly"`
	PromptOnly      bool     `json:"promptOnly"`
	RunOnEdit       bool     `json:"runOnEdit"`
	SubstituteRegex int      `json:"substituteRegex"`
	MinDepth        *int     `json:"minDepth"`
	MaxDepth        *int     `json:"maxDepth"`
	IsStatic        bool     `json:"isStatic"`
}

// NormalizeRule fills defaults for a rule at any ingestion point (seed load,
// editor create, import, generated output). Static rules get an id derived
// from their name; dynamic rules keep theirs, and newID is used when empty.
func NormalizeRule(r Rule, static bool, newID func() string) Rule {
	r.ScriptName = strings.TrimSpace(r.ScriptName)
	r.IsStatic = static
	if r.ID == "" {
		if static {
			r.ID = StaticIDPrefix + Slug(r.ScriptName)
		} else if newID != nil {
			r.ID = DynamicIDPrefix + newID()
		}
	}
	if len(r.Placement) == 0 {
		r.Placement = append([]int(nil), DefaultPlacement...)
	}
	if r.TrimStrings == nil {
		r.TrimStrings = []string{}
	}
	if r.SubstituteRegex < 0 || r.SubstituteRegex > 2 {
		r.SubstituteRegex = 0
	}
	return r
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	c := r
	c.TrimStrings = append([]string(nil), r.TrimStrings...)
	c.Placement = append([]int(nil), r.Placement...)
	if r.MinDepth != nil {
		v := *r.MinDepth
		c.MinDepth = &v
	}
	if r.MaxDepth != nil {
		v := *r.MaxDepth
		c.MaxDepth = &v
	}
	return c
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses every non-alphanumeric run to "_".
func Slug(s string) string {
	s = slugRegex.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}
