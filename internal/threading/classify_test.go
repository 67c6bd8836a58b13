package threading

import (
	"testing"

	"flowmod/api/internal/models"
)

func TestClassify(t *testing.T) {
	community := response("c", "1", 1, models.ChannelCommunityBot)
	private := response("p", "1", 2, models.ChannelPrivateBot)

	cases := []struct {
		name      string
		responses []models.Message
		want      Classification
	}{
		{"empty", nil, ClassNone},
		{"community only", []models.Message{community, community}, ClassCommunityOnly},
		{"private only", []models.Message{private}, ClassPrivateOnly},
		{"dual", []models.Message{private, community}, ClassDual},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.responses); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}
