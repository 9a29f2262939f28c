package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and database credentials have no
// fallback value: Load reports them as missing instead.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBDriver        string        // "mysql" or "sqlite"
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	DBPath          string        // sqlite file path
	JWTSecret       string        // secret used to sign session tokens
	AccessTTLMin    int           // session token time-to-live in minutes
	BcryptCost      int           // bcrypt cost for password hashing
	UploadDir       string        // directory receiving uploads and tattooed copies
	DefaultToken    string        // token embedded when the upload carries none
	MetadataCodec   string        // "native" or "exiftool"
	ExifToolPath    string        // exiftool binary used by the exiftool codec
	ExifToolTimeout time.Duration // upper bound for one exiftool invocation
	MaxUploadBytes  int64         // request body limit for multipart endpoints
	AuthRequired    bool          // guard image routes with the JWT middleware
	DeleteRoles     []string      // roles allowed to delete images when AuthRequired
	CORSOrigins     []string      // allowed CORS origins, empty disables CORS
	RabbitMQURL     string        // broker URL, empty disables domain events
	LogLevel        string        // debug|info|warn|error
}

// source resolves a key against the process environment first and the
// optional YAML file second.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s source) str(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

// Load reads the .env file (when present), the optional CONFIG_FILE YAML
// document and the environment, then returns a validated Config.  Every
// missing required variable is reported in a single error.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	var missing []string
	must := func(key string) string {
		v, ok := src.lookup(key)
		if !ok {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:             src.str("APP_ENV", "dev"),
		Port:            src.str("APP_PORT", "3000"),
		DBDriver:        strings.ToLower(src.str("DB_DRIVER", "mysql")),
		DBPass:          src.str("DB_PASS", ""),
		JWTSecret:       must("JWT_SECRET"),
		UploadDir:       src.str("UPLOAD_DIR", "uploads"),
		DefaultToken:    src.str("DEFAULT_TOKEN", "ID_Patient:12345"),
		MetadataCodec:   strings.ToLower(src.str("METADATA_CODEC", "native")),
		ExifToolPath:    src.str("EXIFTOOL_PATH", "exiftool"),
		RabbitMQURL:     src.str("RABBITMQ_URL", ""),
		LogLevel:        src.str("LOG_LEVEL", "info"),
		DeleteRoles:     splitList(src.str("DELETE_ROLES", "")),
		CORSOrigins:     splitList(src.str("CORS_ORIGINS", "")),
		ExifToolTimeout: parseDurOr(src.str("EXIFTOOL_TIMEOUT", ""), 10*time.Second),
		AuthRequired:    parseBoolOr(src.str("AUTH_REQUIRED", ""), false),
	}

	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
		cfg.DBPath = must("DB_PATH")
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q (must be mysql or sqlite)", cfg.DBDriver)
	}

	switch cfg.MetadataCodec {
	case "native", "exiftool":
	default:
		return Config{}, fmt.Errorf("unsupported METADATA_CODEC %q (must be native or exiftool)", cfg.MetadataCodec)
	}

	var err error
	if cfg.AccessTTLMin, err = intOr(src, "ACCESS_TOKEN_TTL_MIN", 60); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = intOr(src, "BCRYPT_COST", 10); err != nil {
		return Config{}, err
	}
	maxUpload, err := intOr(src, "MAX_UPLOAD_BYTES", 20<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// loadFile parses a flat YAML mapping of variable names to values.
func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func intOr(src source, key string, def int) (int, error) {
	s, ok := src.lookup(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q", key, s)
	}
	return n, nil
}

func parseBoolOr(s string, def bool) bool {
	switch s {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return def
}

func parseDurOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
