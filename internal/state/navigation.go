package state

import "fmt"

const NavigationKey = "navigation"

type View string

const (
	ViewTools    View = "tools"
	ViewSoftware View = "software"
	ViewDeps     View = "dependencies"
	ViewRestore  View = "restore"
)

var Views = []View{ViewTools, ViewSoftware, ViewDeps, ViewRestore}

func (v View) Valid() bool {
	for _, known := range Views {
		if v == known {
			return true
		}
	}
	return false
}

// NavigationState remembers where the user left the interactive view.
type NavigationState struct {
	ActiveView    View `json:"activeView"`
	HideInstalled bool `json:"hideInstalled"`
}

func DefaultNavigation() NavigationState {
	return NavigationState{ActiveView: ViewTools}
}

// LoadNavigation returns the stored navigation state. Missing or unknown
// values fall back to the defaults.
func LoadNavigation(s Store) (NavigationState, error) {
	nav := DefaultNavigation()
	ok, err := s.Get(NavigationKey, &nav)
	if err != nil {
		return DefaultNavigation(), err
	}
	if !ok || !nav.ActiveView.Valid() {
		nav.ActiveView = ViewTools
	}
	return nav, nil
}

func SaveNavigation(s Store, nav NavigationState) error {
	if !nav.ActiveView.Valid() {
		return fmt.Errorf("unknown view %q", nav.ActiveView)
	}
	return s.Set(NavigationKey, nav)
}
