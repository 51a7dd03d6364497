package services

import (
	"math"
	"strings"

	"github.com/storynest/storynest-backend/internal/types"
)

// AnswerValidator decides, per activity type, whether a response counts
// as complete. One registry, invoked uniformly from every call site.
// Malformed or missing responses are invalid, never request errors.
type AnswerValidator interface {
	Validate(activityType string, response any) bool
	FailingTypes(required []string, answers map[string]any) []string
}

type validateFunc func(response any) bool

type answerValidator struct {
	rules map[string]validateFunc
}

func NewAnswerValidator() AnswerValidator {
	v := &answerValidator{rules: map[string]validateFunc{}}
	v.rules[types.ActivityTypeWho] = validateOrderedList
	v.rules[types.ActivityTypeSequence] = validateOrderedList
	v.rules[types.ActivityTypeWhere] = validateWhere
	v.rules[types.ActivityTypeMainIdea] = validateSelections
	v.rules[types.ActivityTypeVocabulary] = validateVocabularyPairs
	v.rules[types.ActivityTypePredict] = validatePredict
	return v
}

func (v *answerValidator) Validate(activityType string, response any) bool {
	rule, ok := v.rules[activityType]
	if !ok {
		return false
	}
	if response == nil {
		return false
	}
	return rule(response)
}

// FailingTypes returns every required type whose answer is absent or
// invalid, in the required order.
func (v *answerValidator) FailingTypes(required []string, answers map[string]any) []string {
	var failed []string
	for _, at := range required {
		response, ok := answers[at]
		if !ok || !v.Validate(at, response) {
			failed = append(failed, at)
		}
	}
	return failed
}

// who / sequence: a non-empty ordered list of items.
func validateOrderedList(response any) bool {
	items, ok := response.([]any)
	return ok && len(items) > 0
}

// where: free text, trimmed length >= 10.
func validateWhere(response any) bool {
	text, ok := response.(string)
	return ok && len(strings.TrimSpace(text)) >= 10
}

// main-idea: a non-empty list of selected option identifiers.
func validateSelections(response any) bool {
	items, ok := response.([]any)
	return ok && len(items) > 0
}

// vocabulary: a non-empty list of match pairs; every pair needs a word and
// a match and must be individually correct.
func validateVocabularyPairs(response any) bool {
	pairs, ok := response.([]any)
	if !ok || len(pairs) == 0 {
		return false
	}
	for _, raw := range pairs {
		pair, ok := raw.(map[string]any)
		if !ok {
			return false
		}
		word, _ := pair["word"].(string)
		match, _ := pair["match"].(string)
		if strings.TrimSpace(word) == "" || strings.TrimSpace(match) == "" {
			return false
		}
		correct, ok := pair["correct"].(bool)
		if !ok || !correct {
			return false
		}
	}
	return true
}

// predict: a non-negative integer naming the chosen option.
func validatePredict(response any) bool {
	switch n := response.(type) {
	case int:
		return n >= 0
	case float64:
		return n >= 0 && n == math.Trunc(n)
	default:
		return false
	}
}
