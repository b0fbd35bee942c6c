package proposal

// Action is a user request coming from the display surface. The concrete
// types below are the only implementations.
type Action interface {
	actionName() string
}

// SelectTab switches the visible tab.
type SelectTab struct {
	Index int
}

// ActivateLink opens the module owning a heading, menu entry or hyperlink.
type ActivateLink struct {
	ID string
}

// Proceed applies every module's settings and leaves the screen.
type Proceed struct{}

// Back leaves the screen without writing.
type Back struct{}

// Abort ends the installation. Confirmed must be set once the user agreed.
type Abort struct {
	Confirmed bool
}

// Reset recomputes every proposal from defaults.
type Reset struct{}

// Export serializes the current configuration.
type Export struct{}

// ToggleSkip flips whether this screen's settings are applied.
type ToggleSkip struct{}

func (SelectTab) actionName() string    { return "tab" }
func (ActivateLink) actionName() string { return "link" }
func (Proceed) actionName() string      { return "proceed" }
func (Back) actionName() string         { return "back" }
func (Abort) actionName() string        { return "abort" }
func (Reset) actionName() string        { return "reset" }
func (Export) actionName() string       { return "export" }
func (ToggleSkip) actionName() string   { return "toggle_skip" }

// ActionName returns the wire name of an action.
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}
