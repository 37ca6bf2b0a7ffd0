package context

// Environment is the interface to the process environment.
type Environment interface {
	Get(string) string
	Set(string, string) error
}

// Environment variables that override configuration values. Command-line flags
// take precedence over them.
const (
	EnvProvider   = "DBSHIFT_PROVIDER"
	EnvConnection = "DBSHIFT_CONNECTION"
	EnvDir        = "DBSHIFT_DIR"
	EnvTable      = "DBSHIFT_TABLE"
)
