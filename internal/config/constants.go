package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./readstats.db"

	// DefaultWebDAVBasePath is where KOReader keeps its settings on a synced device
	DefaultWebDAVBasePath = "/koreader"

	// DefaultEncryptionKeyFile holds the generated credential secret when
	// ENCRYPTION_KEY is not set
	DefaultEncryptionKeyFile = ".readstats-credentials-key"
)
