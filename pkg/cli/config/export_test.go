package config

// NewEngineForTest creates an Engine config for testing purposes
func NewEngineForTest(path, dashboardURL string) *Engine {
	return &Engine{path: path, dashboardURL: dashboardURL}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, bucket string) *Repository {
	return &Repository{backend: backend, projectID: projectID, bucket: bucket}
}

// NewNotifierForTest creates a Notifier config for testing purposes
func NewNotifierForTest(kind, botToken, channelID, apiURL string) *Notifier {
	return &Notifier{
		kind:    kind,
		noColor: true,
		slack: Slack{
			botToken:  botToken,
			channelID: channelID,
			apiURL:    apiURL,
		},
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}
