package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/regexcache"
)

var (
	// ErrInvalidPattern marks a findRegex that does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrMalformedRule marks a rule draft that fails validation.
	ErrMalformedRule = errors.New("malformed rule")
	// ErrNotFound is returned for unknown rule ids.
	ErrNotFound = errors.New("rule not found")
	// ErrStaticRule is returned when editing or deleting a built-in rule.
	ErrStaticRule = errors.New("static rules can only be enabled or disabled")
)

// Highest placement value the host understands.
const maxPlacement = 6

// ValidationError is one field problem in a rule draft.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors lists every problem found in a draft. It matches
// ErrMalformedRule with errors.Is, and ErrInvalidPattern when the regex
// did not compile.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return "malformed rule: " + strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() []error {
	errs := []error{ErrMalformedRule}
	for _, v := range e {
		if v.Err != nil {
			errs = append(errs, v.Err)
		}
	}
	return errs
}

// Validate checks a rule draft as submitted by an editor or generator.
// A nil Placement means "use the default"; an explicit empty one is an error.
func Validate(r model.Rule) error {
	var errs ValidationErrors
	if strings.TrimSpace(r.ScriptName) == "" {
		errs = append(errs, ValidationError{Field: "scriptName", Message: "must not be empty"})
	}
	if strings.TrimSpace(r.FindRegex) == "" {
		errs = append(errs, ValidationError{Field: "findRegex", Message: "must not be empty"})
	} else if _, err := regexcache.Compile(r.FindRegex); err != nil {
		errs = append(errs, ValidationError{
			Field:   "findRegex",
			Message: err.Error(),
			Err:     fmt.Errorf("%w: %v", ErrInvalidPattern, err),
		})
	}
	if r.Placement != nil && len(r.Placement) == 0 {
		errs = append(errs, ValidationError{Field: "placement", Message: "at least one placement flag is required"})
	}
	for _, p := range r.Placement {
		if p < 0 || p > maxPlacement {
			errs = append(errs, ValidationError{Field: "placement", Message: fmt.Sprintf("unknown placement %d", p)})
		}
	}
	if opts := regexcache.ParseRandomOptions(r.ReplaceString); opts != nil && len(opts) == 0 {
		errs = append(errs, ValidationError{Field: "replaceString", Message: "{{random:}} lists no options"})
	}
	if r.MinDepth != nil && r.MaxDepth != nil && *r.MinDepth > *r.MaxDepth {
		errs = append(errs, ValidationError{Field: "minDepth", Message: "must not exceed maxDepth"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
