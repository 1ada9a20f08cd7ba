// Package validate checks parsed messages against the specification
// registry. Findings are accumulated as data on the result, never raised;
// an invalid message is still persisted and displayed.
package validate

import (
	"fmt"
	"sort"

	"github.com/fixtools/fix-log-analyzer/internal/dict"
	"github.com/fixtools/fix-log-analyzer/internal/fix"
)

// Result is the outcome of validating one message.
type Result struct {
	IsValid bool
	Errors  []string
}

// Validate checks message-type recognition and per-field enumeration
// legality for every tag in the message's full field mapping. Pure and
// side-effect-free.
func Validate(registry *dict.Registry, msg *fix.Message) Result {
	var errs []string

	if registry.MessageTypeName(msg.MsgType, msg.FixVersion) == dict.UnknownMessageTypeName(msg.MsgType) {
		errs = append(errs, fmt.Sprintf("Unknown message type: %s for version %s", msg.MsgType, msg.FixVersion))
	}

	// Deterministic error order for stable output.
	tags := make([]string, 0, len(msg.Fields))
	for tag := range msg.Fields {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		value := msg.Fields[tag]
		if !registry.IsValidValue(tag, value, msg.FixVersion) {
			fieldName := registry.FieldName(tag, msg.FixVersion)
			errs = append(errs, fmt.Sprintf("Invalid value '%s' for field %s (%s)", value, fieldName, tag))
		}
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// Apply runs Validate and attaches the findings to the message.
func Apply(registry *dict.Registry, msg *fix.Message) {
	result := Validate(registry, msg)
	msg.IsValid = result.IsValid
	msg.ValidationErrors = result.Errors
}
