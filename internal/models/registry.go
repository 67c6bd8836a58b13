package models

import (
	"strings"
	"time"
)

type Participant struct {
	ID                string    `json:"id"`
	CommunityID       string    `json:"communityId"`
	DisplayName       string    `json:"displayName"`
	PublicChannelID   string    `json:"publicChannelId"`
	VerifiedChannelID *string   `json:"verifiedChannelId,omitempty"`
	JoinedAt          time.Time `json:"joinedAt"`
}

// HasVerifiedChannel reports whether private responses can reach p.
func (p Participant) HasVerifiedChannel() bool {
	return p.VerifiedChannelID != nil && strings.TrimSpace(*p.VerifiedChannelID) != ""
}

// Label is the name shown for p in contributor lists.
func (p Participant) Label() string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	if handle := strings.TrimSpace(p.PublicChannelID); handle != "" {
		return handle
	}
	return "Anonymous"
}

// Group is a locally registered chat group. Name is nil for rows created
// before the operator named them.
type Group struct {
	ID              string    `json:"id"`
	CommunityID     string    `json:"communityId"`
	MasterGroupID   *string   `json:"masterGroupId,omitempty"`
	ExternalGroupID *string   `json:"externalGroupId,omitempty"`
	Name            *string   `json:"name,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// External returns the external directory id or "".
func (g Group) External() string {
	if g.ExternalGroupID == nil {
		return ""
	}
	return *g.ExternalGroupID
}

// DisplayName returns the group's name or "".
func (g Group) DisplayName() string {
	if g.Name == nil {
		return ""
	}
	return *g.Name
}

// MasterGroup aggregates member groups into one community scope.
type MasterGroup struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"communityId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Groups      []Group   `json:"groups"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ExternalGroupRecord is a group listing supplied by the external directory.
type ExternalGroupRecord struct {
	ExternalGroupID string `json:"externalGroupId"`
	Name            string `json:"name"`
	MemberCount     int    `json:"memberCount"`
}
