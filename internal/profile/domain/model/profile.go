package model

import "time"

// Profile is the user profile document, keyed by the auth provider's user
// identifier. It lives in MongoDB and is mirrored into adapter-local state
// through a push subscription; every write publishes a realtime event on the
// user's profile topic.
type Profile struct {
	UserID       string                 `bson:"_id" json:"userId"`
	Email        string                 `bson:"email,omitempty" json:"email,omitempty"`
	DisplayName  string                 `bson:"displayName,omitempty" json:"displayName,omitempty"`
	AvatarFileID string                 `bson:"avatarFileId,omitempty" json:"avatarFileId,omitempty"`
	Plan         string                 `bson:"plan,omitempty" json:"plan,omitempty"`
	Preferences  map[string]interface{} `bson:"preferences,omitempty" json:"preferences,omitempty"`
	UpdatedAt    time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// DefaultPlan is assigned when a profile is created on first login.
const DefaultPlan = "free"

// NewProfile creates the initial profile document for a user.
func NewProfile(userID, email, displayName string) *Profile {
	return &Profile{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Plan:        DefaultPlan,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Clone returns a deep copy. Snapshots handed out by the state adapter are
// clones so callers cannot mutate shared state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Preferences != nil {
		clone.Preferences = make(map[string]interface{}, len(p.Preferences))
		for k, v := range p.Preferences {
			clone.Preferences[k] = v
		}
	}
	return &clone
}

// ToMap converts the profile into the payload shape carried by realtime
// events on the profile topic.
func (p *Profile) ToMap() map[string]interface{} {
	data := map[string]interface{}{
		"userId":    p.UserID,
		"updatedAt": p.UpdatedAt.Format(time.RFC3339Nano),
	}
	if p.Email != "" {
		data["email"] = p.Email
	}
	if p.DisplayName != "" {
		data["displayName"] = p.DisplayName
	}
	if p.AvatarFileID != "" {
		data["avatarFileId"] = p.AvatarFileID
	}
	if p.Plan != "" {
		data["plan"] = p.Plan
	}
	if p.Preferences != nil {
		data["preferences"] = p.Preferences
	}
	return data
}

// FromMap rebuilds a profile from a realtime event payload. Unknown fields
// are ignored; a missing or malformed updatedAt falls back to now.
func FromMap(data map[string]interface{}) *Profile {
	p := &Profile{UpdatedAt: time.Now().UTC()}

	if v, ok := data["userId"].(string); ok {
		p.UserID = v
	}
	if v, ok := data["email"].(string); ok {
		p.Email = v
	}
	if v, ok := data["displayName"].(string); ok {
		p.DisplayName = v
	}
	if v, ok := data["avatarFileId"].(string); ok {
		p.AvatarFileID = v
	}
	if v, ok := data["plan"].(string); ok {
		p.Plan = v
	}
	if v, ok := data["preferences"].(map[string]interface{}); ok {
		p.Preferences = v
	}

	switch v := data["updatedAt"].(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			p.UpdatedAt = ts
		}
	case time.Time:
		p.UpdatedAt = v
	}

	return p
}
