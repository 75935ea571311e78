// Package config resolves the service settings from flags, the environment
// and an optional .env file, in that order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/importer"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every setting of the censo binary.
type Config struct {
	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	SQLitePath  string

	HTTPAddr    string
	CORSOrigins []string

	IBGEBaseURL   string
	IBGETimeout   time.Duration
	IBGEAttempts  int
	IBGERateLimit float64

	BatchSize           int
	CSVEncoding         string
	CSVDelimiter        string
	DuplicateYearPolicy string
	IngestParallelism   int
	SourcesFile         string

	LogLevel  string
	LogFormat string
}

// envAliases maps flags whose environment variable does not follow the
// flag name.
var envAliases = map[string]string{
	"parallel": "INGEST_PARALLELISM",
}

// Flags registers one flag per setting on fs, bound to c.
func (c *Config) Flags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DBDriver, "db-driver", database.DriverPostgres, "Database driver: postgres or sqlite.")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "Full connection string; overrides the db-* settings.")
	fs.StringVar(&c.DBHost, "db-host", "localhost", "PostgreSQL host.")
	fs.StringVar(&c.DBPort, "db-port", "5432", "PostgreSQL port.")
	fs.StringVar(&c.DBUser, "db-user", "postgres", "PostgreSQL user.")
	fs.StringVar(&c.DBPassword, "db-password", "", "PostgreSQL password.")
	fs.StringVar(&c.DBName, "db-name", "censo_escolar", "PostgreSQL database name.")
	fs.StringVar(&c.DBSSLMode, "db-sslmode", "disable", "PostgreSQL sslmode.")
	fs.StringVar(&c.SQLitePath, "sqlite-path", "censo.db", "SQLite database file.")

	fs.StringVar(&c.HTTPAddr, "http-addr", ":5000", "HTTP listen address.")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", []string{"*"}, "Allowed CORS origins.")

	fs.StringVar(&c.IBGEBaseURL, "ibge-base-url", importer.DefaultIBGEBaseURL, "IBGE localidades API base URL.")
	fs.DurationVar(&c.IBGETimeout, "ibge-timeout", importer.DefaultIBGETimeout, "Timeout of one IBGE request.")
	fs.IntVar(&c.IBGEAttempts, "ibge-attempts", importer.DefaultIBGEAttempts, "Attempts per IBGE request.")
	fs.Float64Var(&c.IBGERateLimit, "ibge-rate-limit", 0, "Maximum IBGE requests per second; 0 is unlimited.")

	fs.IntVar(&c.BatchSize, "batch-size", importer.DefaultBatchSize, "Rows committed per transaction when appending.")
	fs.StringVar(&c.CSVEncoding, "csv-encoding", importer.DefaultEncoding, "Encoding of census CSV files.")
	fs.StringVar(&c.CSVDelimiter, "csv-delimiter", string(importer.DefaultDelimiter), "Delimiter of census CSV files.")
	fs.StringVar(&c.DuplicateYearPolicy, "duplicate-year-policy", string(importer.PolicyReject), "What to do with an already loaded census year: reject, replace or append.")
	fs.IntVar(&c.IngestParallelism, "parallel", 1, "Ingestion jobs run at once.")
	fs.StringVar(&c.SourcesFile, "sources-file", "", "YAML manifest of ingestion sources.")

	fs.StringVar(&c.LogLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	fs.StringVar(&c.LogFormat, "log-format", "text", "Log format: text or json.")
}

// LoadDotEnv loads variables from the given .env files, ".env" by default.
// Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "loading %s", p)
		}
	}
	return nil
}

// Resolve fills every flag that was not set on the command line from the
// environment. DB_HOST sets --db-host, and so on.
func Resolve(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if flags.Lookup(key) == nil {
			continue
		}
		if err := v.BindEnv(key, env); err != nil {
			return errors.Wrapf(err, "binding %s", env)
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = errors.Wrapf(err, "invalid value %q for %s", value, f.Name)
		}
	})
	return flagErr
}

// Validate rejects settings the components cannot work with.
func (c Config) Validate() error {
	if _, err := database.DialectFor(c.DBDriver); err != nil {
		return errors.WithCode(err, errors.ErrValidation, "db-driver")
	}
	if _, err := importer.ParseDuplicatePolicy(c.DuplicateYearPolicy); err != nil {
		return err
	}
	if !importer.SupportedEncoding(c.CSVEncoding) {
		return errors.Newf(errors.ErrValidation, "unsupported csv-encoding %q", c.CSVEncoding)
	}
	if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		return errors.Newf(errors.ErrValidation, "csv-delimiter %q is not a single character", c.CSVDelimiter)
	}
	if c.BatchSize < 1 {
		return errors.Newf(errors.ErrValidation, "batch-size must be positive, got %d", c.BatchSize)
	}
	if c.IBGEAttempts < 1 {
		return errors.Newf(errors.ErrValidation, "ibge-attempts must be positive, got %d", c.IBGEAttempts)
	}
	if c.IngestParallelism < 1 {
		return errors.Newf(errors.ErrValidation, "parallel must be positive, got %d", c.IngestParallelism)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Newf(errors.ErrValidation, "log-format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// DSN returns the connection string of the configured driver.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == database.DriverSQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBSSLMode)
}

// Database returns the settings passed to database.Open.
func (c Config) Database() database.Config {
	return database.Config{
		Driver:          c.DBDriver,
		DSN:             c.DSN(),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// CSVOptions returns the configured census CSV format.
func (c Config) CSVOptions() importer.CSVOptions {
	opts := importer.CSVOptions{Encoding: c.CSVEncoding}
	if r, size := utf8.DecodeRuneInString(c.CSVDelimiter); size > 0 {
		opts.Delimiter = r
	}
	return opts
}

// IBGEOptions returns the settings of the IBGE client.
func (c Config) IBGEOptions(logger *slog.Logger) importer.IBGEOptions {
	return importer.IBGEOptions{
		BaseURL:   c.IBGEBaseURL,
		Timeout:   c.IBGETimeout,
		Attempts:  c.IBGEAttempts,
		RateLimit: c.IBGERateLimit,
		Logger:    logger,
	}
}

// Logger builds the structured logger writing to w.
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.WithCodef(err, errors.ErrValidation, "log-level %q", s)
	}
	return level, nil
}
