package state

// validTransitions contains the permitted transitions keyed by source state.
// Returning to the menu is always allowed and is not listed here.
var validTransitions = map[State][]State{
	StateStart: {
		StateMenu,
	},
	StateMenu: {
		StateProduct,
		StateCart,
	},
	StateProduct: {
		StateCart,
	},
	StateCart: {
		// Removing a cart line re-renders the cart in place.
		StateCart,
		StateAwaitingEmail,
	},
	StateAwaitingEmail: {},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateMenu {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, next := range allowed {
		if next == to {
			return true
		}
	}

	return false
}
