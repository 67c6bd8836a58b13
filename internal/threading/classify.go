package threading

import "flowmod/api/internal/models"

// Classification describes which bot channels answered an original.
type Classification string

const (
	ClassNone          Classification = "none"
	ClassCommunityOnly Classification = "community-only"
	ClassPrivateOnly   Classification = "private-only"
	ClassDual          Classification = "dual"
)

// Classify inspects the sender channels of a response list. Member-channel
// entries never occur in well-formed input and are ignored.
func Classify(responses []models.Message) Classification {
	var community, private bool
	for _, response := range responses {
		switch response.SenderChannel {
		case models.ChannelCommunityBot:
			community = true
		case models.ChannelPrivateBot:
			private = true
		}
	}
	switch {
	case community && private:
		return ClassDual
	case private:
		return ClassPrivateOnly
	case community:
		return ClassCommunityOnly
	default:
		return ClassNone
	}
}
