// Package paths names the top-level store collections. Every
// component addresses the shared database through these roots.
package paths

const (
	Chats            = "chats"
	Items            = "items"
	Intents          = "intents"
	SystemPrompt     = "systemPrompt"
	ClassifierPrompt = "classifierPrompt"
	ReminderPrompt   = "reminderPrompt"
	Settings         = "settings"
	Users            = "users"
	Triggers         = "triggers"
	Groups           = "groups"
	Services         = "services"
	OngoingServices  = "ongoing_services"
	Sessions         = "sessions"
	Admins           = "admins"
)
