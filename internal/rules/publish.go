package rules

import (
	"strings"

	"github.com/rcliao/prosepolisher/internal/model"
)

// HostPrefix marks host scripts owned by prosepolisher.
const HostPrefix = "PP_"

// HostScript is one entry of the host's global regex script list.
type HostScript struct {
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
}

// Publish returns host with every previously published script removed and
// the active rules appended in order. Scripts not carrying HostPrefix are
// kept untouched. Publishing the same input twice gives the same result.
func Publish(host []HostScript, active []model.Rule) []HostScript {
	out := make([]HostScript, 0, len(host)+len(active))
	for _, h := range host {
		if !strings.HasPrefix(h.ID, HostPrefix) {
			out = append(out, h)
		}
	}
	for _, r := range active {
		if r.Disabled {
			continue
		}
		out = append(out, toHost(r))
	}
	return out
}

func toHost(r model.Rule) HostScript {
	r = r.Clone()
	placement := r.Placement
	if len(placement) == 0 {
		placement = append([]int(nil), model.DefaultPlacement...)
	}
	trim := r.TrimStrings
	if trim == nil {
		trim = []string{}
	}
	return HostScript{
		ID:              HostPrefix + r.ID,
		ScriptName:      r.ScriptName,
		FindRegex:       r.FindRegex,
		ReplaceString:   r.ReplaceString,
		TrimStrings:     trim,
		Placement:       placement,
		MarkdownOnly:    r.MarkdownOnly,
		PromptOnly:      r.PromptOnly,
		RunOnEdit:       r.RunOnEdit,
		SubstituteRegex: r.SubstituteRegex,
		MinDepth:        r.MinDepth,
		MaxDepth:        r.MaxDepth,
	}
}
