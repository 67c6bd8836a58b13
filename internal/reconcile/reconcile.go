// Package reconcile merges the external directory's group listing with the
// locally registered groups into one selectable option list.
package reconcile

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"flowmod/api/internal/models"
)

// Origin tags which source(s) an option was seen in.
type Origin string

const (
	OriginExternal Origin = "external-only"
	OriginBoth     Origin = "both"
	OriginLocal    Origin = "local-only"
)

func (o Origin) rank() int {
	switch o {
	case OriginExternal:
		return 0
	case OriginBoth:
		return 1
	default:
		return 2
	}
}

// Option is one distinct group identity.
type Option struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Origin          Origin `json:"origin"`
	ExternalGroupID string `json:"externalGroupId,omitempty"`
	LocalID         string `json:"localId,omitempty"`
	MemberCount     int    `json:"memberCount"`
	AlreadyAssigned bool   `json:"alreadyAssigned"`
	MasterGroupID   string `json:"masterGroupId,omitempty"`
}

// Options reconciles the three snapshots. Every external id yields exactly
// one option; each local group is consumed by at most one external record
// and otherwise emitted as local-only unless it has no name.
func Options(external []models.ExternalGroupRecord, local []models.Group, masters []models.MasterGroup) []Option {
	owner := make(map[string]string)
	for _, master := range masters {
		for _, member := range master.Groups {
			if _, seen := owner[member.ID]; !seen {
				owner[member.ID] = master.ID
			}
		}
	}
	for _, group := range local {
		if group.MasterGroupID == nil || *group.MasterGroupID == "" {
			continue
		}
		if _, seen := owner[group.ID]; !seen {
			owner[group.ID] = *group.MasterGroupID
		}
	}

	consumed := make([]bool, len(local))
	seenExternal := make(map[string]struct{}, len(external))
	out := make([]Option, 0, len(external)+len(local))

	for _, record := range external {
		if _, dup := seenExternal[record.ExternalGroupID]; dup {
			continue
		}
		seenExternal[record.ExternalGroupID] = struct{}{}

		option := Option{
			ID:              "ext-" + record.ExternalGroupID,
			Name:            record.Name,
			Origin:          OriginExternal,
			ExternalGroupID: record.ExternalGroupID,
			MemberCount:     record.MemberCount,
		}
		if idx := matchLocal(record, local, consumed); idx >= 0 {
			consumed[idx] = true
			option.Origin = OriginBoth
			option.LocalID = local[idx].ID
		}
		out = append(out, option)
	}

	for idx, group := range local {
		if consumed[idx] || group.Name == nil {
			continue
		}
		out = append(out, Option{
			ID:              "local-" + group.ID,
			Name:            *group.Name,
			Origin:          OriginLocal,
			ExternalGroupID: group.External(),
			LocalID:         group.ID,
		})
	}

	for i := range out {
		if out[i].LocalID == "" {
			continue
		}
		if masterID, ok := owner[out[i].LocalID]; ok {
			out[i].AlreadyAssigned = true
			out[i].MasterGroupID = masterID
		}
	}

	sortOptions(out)
	return out
}

// matchLocal finds the first unconsumed local group for record: by external
// id, or by exact name when the local group has no external id.
func matchLocal(record models.ExternalGroupRecord, local []models.Group, consumed []bool) int {
	for idx, group := range local {
		if consumed[idx] {
			continue
		}
		if ext := group.External(); ext != "" {
			if ext == record.ExternalGroupID {
				return idx
			}
			continue
		}
		if record.Name != "" && group.Name != nil && *group.Name == record.Name {
			return idx
		}
	}
	return -1
}

func sortOptions(options []Option) {
	names := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.AlreadyAssigned != b.AlreadyAssigned {
			return !a.AlreadyAssigned
		}
		if a.Origin != b.Origin {
			return a.Origin.rank() < b.Origin.rank()
		}
		return names.CompareString(a.Name, b.Name) < 0
	})
}
