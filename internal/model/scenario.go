// internal/model/scenario.go
package model

// Scenario is the mutually exclusive classification that governs which
// follow-up template set applies to a lead. The historical phone_opt_in
// scenario was merged into no_phone: opt-in leads share the no_phone queue
// until an actual phone value is known.
type Scenario string

const (
	ScenarioNoPhone        Scenario = "no_phone"
	ScenarioPhoneAvailable Scenario = "phone_available"
)

// ClassifyScenario is a pure function of the lead's flags at call time.
// Phone availability always wins.
func ClassifyScenario(l *Lead) Scenario {
	if l.PhoneAvailable() {
		return ScenarioPhoneAvailable
	}
	return ScenarioNoPhone
}
