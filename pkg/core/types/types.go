// Package types holds the chat data model shared by the chat flow and the
// persistent store.
package types

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one chat turn.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`

	// Image is an optional data-URL attached to a user message.
	Image string `json:"image,omitempty"`

	// Audio marks a message that originated from a voice session.
	Audio bool `json:"audio,omitempty"`
}

// ChatSession is one conversation thread.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"`
}

// CulturalDepth selects how scholarly heritage answers should be.
type CulturalDepth string

const (
	DepthStandard      CulturalDepth = "standard"
	DepthScholarly     CulturalDepth = "scholarly"
	DepthComprehensive CulturalDepth = "comprehensive"
)

// PersonaAdaptation selects the assistant's conversational register.
type PersonaAdaptation string

const (
	PersonaNeutral     PersonaAdaptation = "neutral"
	PersonaEmpathic    PersonaAdaptation = "empathic"
	PersonaTraditional PersonaAdaptation = "traditional"
)

// PrivacySettings are the user's locally persisted preferences.
type PrivacySettings struct {
	AllowLocalHistory       bool          `json:"allowLocalHistory"`
	AllowGeminiImprovement  bool          `json:"allowGeminiImprovement"`
	CulturalDepth           CulturalDepth `json:"culturalDepth"`
	AITemperature           float64       `json:"aiTemperature"`
	EnableQuantumAnimations bool          `json:"enableQuantumAnimations"`

	// AutoPurgeDays drops sessions untouched for this many days on load.
	// Zero disables purging.
	AutoPurgeDays int `json:"autoPurgeDays"`

	DeveloperMode       bool              `json:"developerMode"`
	PersonaAdaptation   PersonaAdaptation `json:"personaAdaptation"`
	CulturalSensitivity int               `json:"culturalSensitivity"`
}

// DefaultPrivacySettings returns the settings used before the user has
// saved any.
func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		AllowLocalHistory:       true,
		AllowGeminiImprovement:  false,
		CulturalDepth:           DepthStandard,
		AITemperature:           0.7,
		EnableQuantumAnimations: true,
		AutoPurgeDays:           0,
		DeveloperMode:           false,
		PersonaAdaptation:       PersonaNeutral,
		CulturalSensitivity:     5,
	}
}
