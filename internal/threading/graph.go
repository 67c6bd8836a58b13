// Package threading links flagged messages to the moderation responses sent
// because of them.
package threading

import (
	"sort"

	"flowmod/api/internal/models"
)

// Thread is an original message with the responses that reference it,
// oldest response first.
type Thread struct {
	Original       models.Message   `json:"original"`
	Responses      []models.Message `json:"responses"`
	Classification Classification   `json:"classification"`
}

// Graph is the result of one Build call. Threads are ordered newest original
// first.
type Graph struct {
	Threads []Thread `json:"threads"`
	// Dropped counts responses whose original is not in the snapshot.
	Dropped int `json:"dropped"`

	index map[string]int
}

// Build partitions messages into originals and responses and attaches each
// response to the original it references. Responses are never treated as
// originals, so a response pointing at itself or at another response is
// dropped like any other dangling reference.
func Build(messages []models.Message) Graph {
	originals := make([]models.Message, 0, len(messages))
	children := make(map[string][]models.Message)
	for _, msg := range messages {
		if msg.IsResponse() {
			parent := *msg.RespondsToMessageID
			children[parent] = append(children[parent], msg)
			continue
		}
		originals = append(originals, msg)
	}

	sort.SliceStable(originals, func(i, j int) bool {
		a, b := originals[i], originals[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	graph := Graph{
		Threads: make([]Thread, 0, len(originals)),
		index:   make(map[string]int, len(originals)),
	}
	attached := 0
	for _, original := range originals {
		if _, dup := graph.index[original.ID]; dup {
			continue
		}
		responses := sortedResponses(children[original.ID])
		attached += len(responses)
		graph.index[original.ID] = len(graph.Threads)
		graph.Threads = append(graph.Threads, Thread{
			Original:       original,
			Responses:      responses,
			Classification: Classify(responses),
		})
	}

	total := 0
	for _, list := range children {
		total += len(list)
	}
	graph.Dropped = total - attached
	return graph
}

func sortedResponses(list []models.Message) []models.Message {
	out := make([]models.Message, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Lookup returns the thread rooted at the original with the given id.
func (g Graph) Lookup(originalID string) (Thread, bool) {
	if g.index == nil {
		for _, thread := range g.Threads {
			if thread.Original.ID == originalID {
				return thread, true
			}
		}
		return Thread{}, false
	}
	pos, ok := g.index[originalID]
	if !ok {
		return Thread{}, false
	}
	return g.Threads[pos], true
}

// Flagged returns the threads whose original was intervened on or tagged
// with a category. Flagged originals without responses are kept.
func (g Graph) Flagged() []Thread {
	out := make([]Thread, 0)
	for _, thread := range g.Threads {
		if thread.Original.Intervened || thread.Original.Flagged() {
			out = append(out, thread)
		}
	}
	return out
}

// ByParticipant returns the threads whose original was sent by participantID.
func (g Graph) ByParticipant(participantID string) []Thread {
	out := make([]Thread, 0)
	for _, thread := range g.Threads {
		if thread.Original.Sender() == participantID {
			out = append(out, thread)
		}
	}
	return out
}
