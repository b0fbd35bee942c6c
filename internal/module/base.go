package module

// Base provides common plumbing for modules: a fixed Description and an
// AskUser that simply asks for recomputation. Embedders supply MakeProposal.
type Base struct {
	desc Description
}

// NewBase seeds the helper with the module description.
func NewBase(desc Description) Base {
	return Base{desc: desc}
}

// SetHelp replaces the help text.
func (b *Base) SetHelp(help string) {
	b.desc.Help = help
}

// SetMenuEntries declares additional entry points.
func (b *Base) SetMenuEntries(entries ...MenuEntry) {
	b.desc.MenuEntries = append([]MenuEntry{}, entries...)
}

// Description implements Module.Description.
func (b *Base) Description(*Context) (Description, error) {
	desc := b.desc
	desc.MenuEntries = append([]MenuEntry(nil), b.desc.MenuEntries...)
	return desc, nil
}

// AskUser implements Module.AskUser.
func (b *Base) AskUser(*Context, AskRequest) (AskResult, error) {
	return AskResult{Sequence: SequenceNext}, nil
}
