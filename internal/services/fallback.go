package services

import (
	"github.com/storynest/storynest-backend/internal/types"
)

// FallbackProvider supplies static activity content when the generator is
// unavailable. Pure and non-failing; its output is never cached, so the
// next read retries real generation.
type FallbackProvider interface {
	ActivityContent(activityType string, studentAge int) map[string]any
}

type staticFallbackProvider struct{}

func NewStaticFallbackProvider() FallbackProvider {
	return &staticFallbackProvider{}
}

func (p *staticFallbackProvider) ActivityContent(activityType string, studentAge int) map[string]any {
	simple := studentAge > 0 && studentAge < 8

	switch activityType {
	case types.ActivityTypeWho:
		return map[string]any{
			"prompt":   "Who was in today's chapter? Add each character.",
			"examples": []string{"the main character", "a friend", "a helper"},
			"fallback": true,
		}
	case types.ActivityTypeWhere:
		prompt := "Where did today's chapter take place? Describe the setting in a sentence."
		if simple {
			prompt = "Where did the story happen? Tell us in your own words."
		}
		return map[string]any{
			"prompt":    prompt,
			"minLength": 10,
			"fallback":  true,
		}
	case types.ActivityTypeSequence:
		return map[string]any{
			"prompt": "Put the events from today's chapter in order.",
			"items": []string{
				"Something begins",
				"A problem appears",
				"Someone helps",
				"The day ends",
			},
			"fallback": true,
		}
	case types.ActivityTypeMainIdea:
		return map[string]any{
			"prompt": "Which ideas best describe today's chapter? Pick all that fit.",
			"options": []string{
				"Trying something new",
				"Helping a friend",
				"Solving a problem",
				"Learning a lesson",
			},
			"fallback": true,
		}
	case types.ActivityTypeVocabulary:
		pairs := []map[string]string{
			{"word": "brave", "definition": "not afraid to try"},
			{"word": "curious", "definition": "wanting to find out"},
			{"word": "gentle", "definition": "soft and kind"},
		}
		if !simple {
			pairs = append(pairs,
				map[string]string{"word": "determined", "definition": "refusing to give up"},
				map[string]string{"word": "mysterious", "definition": "hard to explain"},
			)
		}
		return map[string]any{
			"prompt":   "Match each word with what it means.",
			"pairs":    pairs,
			"fallback": true,
		}
	case types.ActivityTypePredict:
		return map[string]any{
			"prompt": "What do you think happens next?",
			"options": []string{
				"Something surprising",
				"A new character arrives",
				"The problem gets solved",
			},
			"fallback": true,
		}
	default:
		return map[string]any{
			"prompt":   "Think about today's chapter and share what you noticed.",
			"fallback": true,
		}
	}
}
