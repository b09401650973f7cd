package domain

// Preference is the read model for a user's notification settings, sourced
// from the identity tables owned by the surrounding application. EmailEnabled
// gates the email channel; a configured PushTopic gates the push channel (no
// topic means push is off regardless of anything else). Email and DisplayName
// are resolved here too so delivery and rendering need no second lookup.
type Preference struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Active       bool   `json:"active"`
	EmailEnabled bool   `json:"email_enabled"`
	PushTopic    string `json:"push_topic"`
}

// Channels returns the delivery channels enabled for this user, in a fixed
// order (email before push). An empty result means the user receives nothing.
func (p *Preference) Channels() []Channel {
	var channels []Channel
	if p.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if p.PushTopic != "" {
		channels = append(channels, ChannelPush)
	}
	return channels
}

// Name returns the user's display name, falling back to the username.
func (p *Preference) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}
