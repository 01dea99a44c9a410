package dashsync

// Level is the severity of a user notification.
type Level uint8

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a short message for the user (a toast in the web dashboard,
// a line on stderr in the CLI).
type Notification struct {
	Level   Level
	Message string
	Source  string // mutation or event name
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}
