package service

// PanelState is the side panel's finite state.
type PanelState string

const (
	PanelClosed      PanelState = "closed"
	PanelReservoir   PanelState = "open-reservoir"
	PanelGroundwater PanelState = "open-groundwater"
)

// Open reports whether the panel is showing content.
func (s PanelState) Open() bool {
	return s == PanelReservoir || s == PanelGroundwater
}

// Kind returns the layer whose content the panel shows, or "" when closed.
func (s PanelState) Kind() LayerKind {
	switch s {
	case PanelReservoir:
		return LayerReservoir
	case PanelGroundwater:
		return LayerGroundwater
	}
	return ""
}

// PanelEvent is an input to the panel reducer.
type PanelEvent struct {
	Type  PanelEventType
	Layer LayerKind // for FeatureSelected and ActiveChanged
}

// PanelEventType enumerates panel reducer inputs.
type PanelEventType int

const (
	// EventFeatureSelected fires when a click resolved a feature on Layer.
	EventFeatureSelected PanelEventType = iota
	// EventToggle flips the panel open/closed without changing its mode.
	EventToggle
	// EventActiveChanged fires when the active layer switches. The panel
	// keeps showing its current content until a new feature is selected.
	EventActiveChanged
	// EventClose closes the panel.
	EventClose
)

// ReducePanel is the single transition function for panel state. It is pure,
// so every transition is unit-testable without a rendering environment.
//
// lastOpen carries the mode the panel had before it was last closed, so a
// toggle can reopen the same content. Returns the new state and new lastOpen.
func ReducePanel(state, lastOpen PanelState, ev PanelEvent) (PanelState, PanelState) {
	switch ev.Type {
	case EventFeatureSelected:
		switch ev.Layer {
		case LayerReservoir:
			return PanelReservoir, PanelReservoir
		case LayerGroundwater:
			return PanelGroundwater, PanelGroundwater
		}
		return state, lastOpen

	case EventToggle:
		if state.Open() {
			return PanelClosed, state
		}
		if lastOpen.Open() {
			return lastOpen, lastOpen
		}
		return PanelClosed, lastOpen

	case EventActiveChanged:
		// No content switch until a feature on the new layer is selected.
		return state, lastOpen

	case EventClose:
		if state.Open() {
			return PanelClosed, state
		}
		return PanelClosed, lastOpen
	}
	return state, lastOpen
}
