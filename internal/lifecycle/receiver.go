package lifecycle

import "log/slog"

// DefaultUpdateAction is the broadcast sent when the learner's progress changes.
const DefaultUpdateAction = "literacyapp.intent.action.STUDENT_UPDATED"

// Broadcast extras carried by an update.
const (
	ExtraAvailableLetters = "availableLetters"
	ExtraAvailableNumbers = "availableNumbers"
)

// Update is the payload of an external update broadcast.
type Update struct {
	AvailableLetters string `json:"available_letters" yaml:"available_letters"`
	AvailableNumbers string `json:"available_numbers" yaml:"available_numbers"`
}

// UpdateReceiver turns update broadcasts into Update values.
type UpdateReceiver struct {
	action  string
	deliver func(Update)
	logger  *slog.Logger
}

// NewUpdateReceiver creates a receiver for action. deliver may be nil.
func NewUpdateReceiver(action string, deliver func(Update), logger *slog.Logger) *UpdateReceiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateReceiver{action: action, deliver: deliver, logger: logger}
}

// Action returns the broadcast action the receiver is registered for.
func (r *UpdateReceiver) Action() string {
	return r.action
}

// Receive handles one broadcast. Missing extras are delivered as empty strings.
func (r *UpdateReceiver) Receive(extras map[string]string) {
	u := Update{
		AvailableLetters: extras[ExtraAvailableLetters],
		AvailableNumbers: extras[ExtraAvailableNumbers],
	}
	r.logger.Info("update broadcast received",
		"action", r.action,
		"available_letters", u.AvailableLetters,
		"available_numbers", u.AvailableNumbers,
	)
	if r.deliver != nil {
		r.deliver(u)
	}
}
