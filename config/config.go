package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/joy095/hallbooking/logger"
)

var loadEnvOnce sync.Once

// LoadEnv reads a local .env file once. A missing file is not an error; the
// process environment always wins.
func LoadEnv() {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			logger.InfoLogger.Info("No .env file found, using process environment")
		}
	})
}

// App is the typed service configuration.
type App struct {
	Port        string `envconfig:"PORT" default:"8081"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL"`

	DefaultTenantID  string   `envconfig:"DEFAULT_TENANT_ID"`
	JWTSecret        string   `envconfig:"JWT_SECRET" required:"true"`
	InternalAPIToken string   `envconfig:"INTERNAL_API_TOKEN" required:"true"`
	CorsOrigins      []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	ThrottleWindow      time.Duration `envconfig:"THROTTLE_WINDOW" default:"5m"`
	ThrottleLogRejected bool          `envconfig:"THROTTLE_LOG_REJECTED" default:"false"`
	BurstRate           string        `envconfig:"BURST_RATE" default:"20-1m"`
	BadWordsFile        string        `envconfig:"BAD_WORDS_FILE"`

	DispatchMaxAttempts int           `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"5"`
	DispatchLease       time.Duration `envconfig:"DISPATCH_LEASE" default:"10m"`

	MailTransport string `envconfig:"MAIL_TRANSPORT" default:"smtp"` // smtp | amqp | dryrun
	FromEmail     string `envconfig:"FROM_EMAIL" default:"no-reply@hallbooking.local"`
	SMTPHost      string `envconfig:"SMTP_HOST"`
	SMTPPort      int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername  string `envconfig:"SMTP_USERNAME"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	MailExchange  string `envconfig:"MAIL_EXCHANGE" default:"mail.outbound"`
}

// Load reads .env and then processes the environment into App.
func Load() (App, error) {
	LoadEnv()
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
