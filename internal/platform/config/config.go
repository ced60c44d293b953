package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数による上書きに使う接頭辞です。
const EnvPrefix = "CONTACTS"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig は HTTP サーバーとヘルスチェック用 gRPC サーバーの設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr"`
	GRPCHealthAddr     string        `yaml:"grpc_health_addr"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	ReadTimeout        time.Duration `yaml:"-"`
	WriteTimeout       time.Duration `yaml:"-"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ReadTimeoutRaw     string        `yaml:"read_timeout"`
	WriteTimeoutRaw    string        `yaml:"write_timeout"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// StorageConfig は利用するストレージドライバの設定です。
// postgres の場合は database セクション、それ以外は DSN を使います。
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// SecurityConfig は API キー認証の設定です。APIKey が空の場合は認証を行いません。
type SecurityConfig struct {
	APIKey string `yaml:"api_key"`
}

// IngestConfig は取り込み処理の設定です。
type IngestConfig struct {
	MaxConcurrent  int64         `yaml:"max_concurrent"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	DefaultCharset string        `yaml:"default_charset"`
	MaxWait        time.Duration `yaml:"-"`
	MaxWaitRaw     string        `yaml:"max_wait"`
}

// InboxConfig は取り込み用ディレクトリ監視の設定です。Dir が空なら無効です。
type InboxConfig struct {
	Dir           string        `yaml:"dir"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	Debounce      time.Duration `yaml:"-"`
	DebounceRaw   string        `yaml:"debounce"`
}

// LoggingConfig はログ出力の設定です。
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Enabled は inbox 監視が有効かどうかを返します。
func (c InboxConfig) Enabled() bool {
	return strings.TrimSpace(c.Dir) != ""
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides は CONTACTS_DATABASE_PASSWORD のような環境変数を設定値へ反映します。
func (c *Config) applyEnvOverrides() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	strs := map[string]*string{
		"server.listen_addr":          &c.Server.ListenAddr,
		"server.grpc_health_addr":     &c.Server.GRPCHealthAddr,
		"server.read_timeout":         &c.Server.ReadTimeoutRaw,
		"server.write_timeout":        &c.Server.WriteTimeoutRaw,
		"server.shutdown_timeout":     &c.Server.ShutdownTimeoutRaw,
		"storage.driver":              &c.Storage.Driver,
		"storage.dsn":                 &c.Storage.DSN,
		"database.host":               &c.Database.Host,
		"database.user":               &c.Database.User,
		"database.password":           &c.Database.Password,
		"database.name":               &c.Database.Name,
		"database.ssl_mode":           &c.Database.SSLMode,
		"database.conn_max_lifetime":  &c.Database.ConnMaxLifetimeRaw,
		"database.conn_max_idle_time": &c.Database.ConnMaxIdleTimeRaw,
		"security.api_key":            &c.Security.APIKey,
		"ingest.default_charset":      &c.Ingest.DefaultCharset,
		"ingest.max_wait":             &c.Ingest.MaxWaitRaw,
		"inbox.dir":                   &c.Inbox.Dir,
		"inbox.sweep_schedule":        &c.Inbox.SweepSchedule,
		"inbox.debounce":              &c.Inbox.DebounceRaw,
		"logging.level":               &c.Logging.Level,
		"logging.format":              &c.Logging.Format,
	}
	for key, dst := range strs {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("config: bind env %s: %w", key, err)
		}
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	ints := map[string]func(int64){
		"database.port":           func(n int64) { c.Database.Port = int(n) },
		"database.max_open_conns": func(n int64) { c.Database.MaxOpenConns = int(n) },
		"database.max_idle_conns": func(n int64) { c.Database.MaxIdleConns = int(n) },
		"ingest.max_concurrent":   func(n int64) { c.Ingest.MaxConcurrent = n },
		"ingest.max_upload_bytes": func(n int64) { c.Ingest.MaxUploadBytes = n },
	}
	for key, set := range ints {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("config: bind env %s: %w", key, err)
		}
		if !v.IsSet(key) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v.GetString(key)), 10, 64)
		if err != nil {
			return fmt.Errorf("config: env override %s: %w", key, err)
		}
		set(n)
	}

	key := "server.cors_allowed_origins"
	if err := v.BindEnv(key); err != nil {
		return fmt.Errorf("config: bind env %s: %w", key, err)
	}
	if v.IsSet(key) {
		c.Server.CORSAllowedOrigins = splitList(v.GetString(key))
	}

	return nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Storage.validateAndNormalize(); err != nil {
		return err
	}

	if c.Storage.Driver == DriverPostgres {
		db := &c.Database
		if err := db.validateAndNormalize(); err != nil {
			return err
		}
	}

	if err := c.Ingest.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Inbox.validateAndNormalize(); err != nil {
		return err
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	var err error
	if s.ReadTimeout, err = parseDurationDefault(s.ReadTimeoutRaw, 15*time.Second); err != nil {
		return fmt.Errorf("config: server.read_timeout: %w", err)
	}
	if s.WriteTimeout, err = parseDurationDefault(s.WriteTimeoutRaw, 30*time.Second); err != nil {
		return fmt.Errorf("config: server.write_timeout: %w", err)
	}
	if s.ShutdownTimeout, err = parseDurationDefault(s.ShutdownTimeoutRaw, 10*time.Second); err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	return nil
}

func (s *StorageConfig) validateAndNormalize() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case "":
		s.Driver = DriverPostgres
	case DriverPostgres:
	case DriverSQLite, DriverMySQL:
		if s.DSN == "" {
			return fmt.Errorf("config: storage.dsn must be set for driver %s", s.Driver)
		}
	default:
		return fmt.Errorf("config: unsupported storage.driver %q", s.Driver)
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationDefault(d.ConnMaxLifetimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationDefault(d.ConnMaxIdleTimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (i *IngestConfig) validateAndNormalize() error {
	if i.MaxConcurrent < 0 {
		return fmt.Errorf("config: ingest.max_concurrent must not be negative")
	}
	if i.MaxUploadBytes < 0 {
		return fmt.Errorf("config: ingest.max_upload_bytes must not be negative")
	}
	if i.MaxUploadBytes == 0 {
		i.MaxUploadBytes = 10 << 20
	}

	wait, err := parseDurationDefault(i.MaxWaitRaw, 5*time.Second)
	if err != nil {
		return fmt.Errorf("config: ingest.max_wait: %w", err)
	}
	i.MaxWait = wait
	return nil
}

func (i *InboxConfig) validateAndNormalize() error {
	if !i.Enabled() {
		return nil
	}
	if i.SweepSchedule == "" {
		i.SweepSchedule = "@every 5m"
	}

	debounce, err := parseDurationDefault(i.DebounceRaw, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("config: inbox.debounce: %w", err)
	}
	i.Debounce = debounce
	return nil
}

func parseDurationDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DSN は pgx 用の接続文字列を返します。ユーザー名とパスワードはエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
