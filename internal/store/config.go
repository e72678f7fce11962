package store

import "os"

// PersistMode selects the durable storage backend
type PersistMode string

const (
	ModeFile   PersistMode = "file"
	ModeSQLite PersistMode = "sqlite"
	ModeDynamo PersistMode = "dynamo"
	ModeNone   PersistMode = "none"
)

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
)

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode     DynamoMode
	Endpoint string // for local mode
	Region   string
	Table    string
}

// PersistConfig holds persistence configuration
type PersistConfig struct {
	Mode       PersistMode
	Dir        string
	SQLitePath string
	Dynamo     DynamoConfig
}

// LoadPersistConfig loads persistence config from environment
func LoadPersistConfig() PersistConfig {
	mode := PersistMode(getEnv("STORAGE_MODE", string(ModeFile)))
	switch mode {
	case ModeFile, ModeSQLite, ModeDynamo:
	default:
		mode = ModeNone
	}

	dynamoMode := DynamoMode(getEnv("DYNAMO_MODE", string(DynamoModeLocal)))
	if dynamoMode != DynamoModeAWS {
		dynamoMode = DynamoModeLocal
	}

	return PersistConfig{
		Mode:       mode,
		Dir:        getEnv("STORAGE_DIR", ".console"),
		SQLitePath: getEnv("STORAGE_SQLITE_PATH", ".console/console.db"),
		Dynamo: DynamoConfig{
			Mode:     dynamoMode,
			Endpoint: getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
			Region:   getEnv("DYNAMO_REGION", "eu-central-1"),
			Table:    getEnv("DYNAMO_VIEW_STATE_TABLE", "monti-console-state"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
