package configuration

type ConfigurationService interface {
	GetConfiguration() Configuration
	// Source is the file the configuration was read from, or "" for
	// compiled-in defaults.
	Source() string
}
