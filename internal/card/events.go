package card

// Events receives the card surface's outbound events. Any callback may
// be nil; emission is then skipped.
type Events struct {
	// ConfigChanged fires with the full updated configuration whenever
	// the editor commits a change.
	ConfigChanged func(cardName string, cfg Config)

	// ShowDetails fires with an entity id when the user asks for the
	// underlying entity's detail view.
	ShowDetails func(cardName, entityID string)

	// Render fires with the freshly derived render state whenever it
	// actually changed.
	Render func(cardName string, state RenderState)
}

func (e *Events) emitConfigChanged(name string, cfg Config) {
	if e != nil && e.ConfigChanged != nil {
		e.ConfigChanged(name, cfg)
	}
}

func (e *Events) emitShowDetails(name, entityID string) {
	if e != nil && e.ShowDetails != nil {
		e.ShowDetails(name, entityID)
	}
}

func (e *Events) emitRender(name string, state RenderState) {
	if e != nil && e.Render != nil {
		e.Render(name, state)
	}
}
