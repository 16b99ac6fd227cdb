package events

const (
	// KindConfigurationWarning identifies a one-time configuration warning
	// surfaced to the user (for example a missing narration credential).
	KindConfigurationWarning Kind = "engine.configuration_warning"
)

// ConfigurationWarning carries a user-facing configuration warning.
type ConfigurationWarning struct {
	Base
	Message string
}

// NewConfigurationWarning creates a configuration warning event.
func NewConfigurationWarning(message string) ConfigurationWarning {
	return ConfigurationWarning{Base: NewBase(KindConfigurationWarning), Message: message}
}
