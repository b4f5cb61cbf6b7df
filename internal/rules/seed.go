package rules

import _ "embed"

// staticSeed is the built-in static rule set.
//
//go:embed static_rules.json
var staticSeed []byte
