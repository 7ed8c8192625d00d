package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "SOBA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SOBA_DB_DSN"
	EnvDBHost = "SOBA_DB_HOST"
	EnvDBUser = "SOBA_DB_USER"
	EnvDBName = "SOBA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
