package catalog

// Item is a sellable catalog entry. IDs are assigned monotonically
// (max existing + 1) and never reused, so a deleted id stays dead and
// concurrent renumbering races cannot occur.
type Item struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price,omitempty"`
}

// Intent names a conversational trigger. Answer, when set, is the
// canned reply sent to the user once the trigger fires; older records
// may lack it, in which case a generic acknowledgement is used.
type Intent struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Answer      string `json:"answer,omitempty"`
}

// Settings is the global singleton configuration the admin panel edits.
type Settings struct {
	// ResponseDelay is an artificial pause, in seconds, before each
	// generated reply is sent. Fractional values allowed; 0 disables.
	ResponseDelay float64 `json:"responseDelay"`
	// ReminderActivationTime is the idle cutoff, in minutes, after
	// which a chat is considered forgotten. 0 disables the scheduler.
	ReminderActivationTime float64 `json:"reminderActivationTime"`
	StartMessage           string  `json:"startMessage"`
	HelpMessage            string  `json:"helpMessage"`
	ResetMessage           string  `json:"resetMessage"`
	TopKItems              int     `json:"topKItems"`
	Threshold              float64 `json:"threshold"`
}

// Profile holds what operators have recorded about a lead.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Notes string `json:"notes,omitempty"`
}

const (
	defaultHelpMessage = "Hello! I am your sales assistant.\n" +
		"To reset chat history, type /start or /reset\n" +
		"To display this message, type /help"
	defaultResetMessage = "The chat is reset"
)

func DefaultSettings() Settings {
	return Settings{
		StartMessage: defaultHelpMessage,
		HelpMessage:  defaultHelpMessage,
		ResetMessage: defaultResetMessage,
		TopKItems:    3,
		Threshold:    0.5,
	}
}
