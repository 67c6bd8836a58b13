package models

// CategoryInfo describes an intervention category for display.
type CategoryInfo struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

const fallbackCategory = "helpful_response"

var categoryCatalog = []CategoryInfo{
	{"medical_verification", "Medical Verification", "Health-related claims requiring verification"},
	{"profanity", "Profanity", "Inappropriate language and offensive content"},
	{"self_promotion", "Self Promotion", "Unauthorized advertising and promotion"},
	{"harassment", "Harassment", "Bullying and targeted harassment"},
	{"spam", "Spam", "Repetitive and unwanted messages"},
	{"threats", "Threats", "Threatening language and intimidation"},
	{"hate_speech", "Hate Speech", "Discriminatory and hateful content"},
	{"inappropriate_content", "Inappropriate Content", "Content not suitable for the group"},
	{"dangerous_advice", "Dangerous Advice", "Potentially harmful guidance or suggestions"},
	{"helpful_response", "Helpful Response", "Positive community assistance"},
}

// Categories returns the known intervention categories in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryCatalog))
	copy(out, categoryCatalog)
	return out
}

// LookupCategory returns the catalog entry for key. Unknown keys are labelled
// as helpful responses.
func LookupCategory(key string) CategoryInfo {
	for _, info := range categoryCatalog {
		if info.Key == key {
			return info
		}
	}
	for _, info := range categoryCatalog {
		if info.Key == fallbackCategory {
			return info
		}
	}
	return CategoryInfo{Key: key, Label: key}
}

// KnownCategory reports whether key is in the catalog.
func KnownCategory(key string) bool {
	for _, info := range categoryCatalog {
		if info.Key == key {
			return true
		}
	}
	return false
}
