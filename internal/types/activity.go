package types

const (
	ActivityTypeWho        = "who"
	ActivityTypeWhere      = "where"
	ActivityTypeSequence   = "sequence"
	ActivityTypeMainIdea   = "main-idea"
	ActivityTypeVocabulary = "vocabulary"
	ActivityTypePredict    = "predict"
)

// AllActivityTypes lists every supported activity type in display order.
var AllActivityTypes = []string{
	ActivityTypeWho,
	ActivityTypeWhere,
	ActivityTypeSequence,
	ActivityTypeMainIdea,
	ActivityTypeVocabulary,
	ActivityTypePredict,
}

// IsActivityType reports whether t names a supported activity type.
func IsActivityType(t string) bool {
	for _, known := range AllActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequiredActivityTypes returns the fixed activity set for a day. Day 1
// has no vocabulary activity (the story's vocabulary is introduced in
// chapter 1 and drilled from day 2 onward).
func RequiredActivityTypes(dayIndex int) []string {
	if dayIndex <= 1 {
		return []string{
			ActivityTypeWho,
			ActivityTypeWhere,
			ActivityTypeSequence,
			ActivityTypeMainIdea,
			ActivityTypePredict,
		}
	}
	return []string{
		ActivityTypeWho,
		ActivityTypeWhere,
		ActivityTypeSequence,
		ActivityTypeMainIdea,
		ActivityTypeVocabulary,
		ActivityTypePredict,
	}
}

// Activity is the per-type view embedded in day detail responses. It is
// assembled from the content cache and the day's answers, not stored.
type Activity struct {
	Type        string      `json:"type"`
	Prompt      string      `json:"prompt"`
	Data        interface{} `json:"data"`
	ContentHash string      `json:"contentHash"`
	Response    interface{} `json:"response,omitempty"`
	Completed   bool        `json:"completed"`
}
