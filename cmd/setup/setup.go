// Package setup contains the flags and wiring shared by the todo commands.
package setup

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata" // include embedded timezone data

	"github.com/gwatts/rootcerts"

	"github.com/circleci/todo/config/o11y"
	"github.com/circleci/todo/config/secret"
	"github.com/circleci/todo/db"
	"github.com/circleci/todo/facts"
	"github.com/circleci/todo/migrations"
	"github.com/circleci/todo/system"
	"github.com/circleci/todo/todos"
)

type CLI struct {
	O11yStatsd        string        `name:"o11y-statsd" env:"O11Y_STATSD" help:"Address to send statsd metrics, metrics are dropped if unset"`
	O11yOtelCollector string        `name:"o11y-otel-collector" env:"O11Y_OTEL_COLLECTOR" help:"host:port of an OTLP gRPC collector for traces"`
	O11yDataset       string        `name:"o11y-dataset" env:"O11Y_DATASET" default:"todo"`
	O11yQuiet         bool          `name:"o11y-quiet" env:"O11Y_QUIET" help:"Do not print traces to stdout when a collector is set"`
	O11yRollbarToken  secret.String `name:"o11y-rollbar-token" env:"O11Y_ROLLBAR_TOKEN"`
	O11yRollbarEnv    string        `name:"o11y-rollbar-env" env:"O11Y_ROLLBAR_ENV" default:"production"`

	DBHost     string        `name:"db-host" env:"DB_HOST" default:"localhost"`
	DBPort     int           `name:"db-port" env:"DB_PORT" default:"5432"`
	DBUser     string        `name:"db-user" env:"DB_USER" default:"postgres"`
	DBPassword secret.String `name:"db-password" env:"DB_PASSWORD" default:"postgres"`
	DBName     string        `name:"db-name" env:"DB_NAME" default:"postgres"`
	DBSSL      bool          `name:"db-ssl" env:"DB_SSL" default:"false"`

	SchemaPath string `name:"schema-path" env:"SCHEMA_PATH" default:"migrations/schema.sql" help:"Path of the SQL schema applied by init-schema"`

	FactsBaseURL string        `name:"facts-base-url" env:"FACTS_BASE_URL" default:"https://cat-fact.herokuapp.com" help:"Base URL of the fact API"`
	FactsTimeout time.Duration `name:"facts-timeout" env:"FACTS_TIMEOUT" default:"5s" help:"Timeout for each call to the fact API"`
}

func init() {
	err := rootcerts.UpdateDefaultTransport()
	if err != nil {
		panic(fmt.Errorf("failed to inject rootcerts: %w", err))
	}
}

func LoadO11y(version, mode string, cli CLI) (context.Context, func(context.Context), error) {
	cfg := o11y.Config{
		GrpcHostAndPort:   cli.O11yOtelCollector,
		Dataset:           cli.O11yDataset,
		DisableText:       cli.O11yQuiet,
		Statsd:            cli.O11yStatsd,
		StatsNamespace:    "circleci.todo.",
		RollbarToken:      cli.O11yRollbarToken,
		RollbarEnv:        cli.O11yRollbarEnv,
		RollbarServerRoot: "github.com/circleci/todo",
		Version:           version,
		Service:           "todo",
		Mode:              mode,
	}
	return o11y.Otel(context.Background(), cfg)
}

func DBConfig(cli CLI) db.Config {
	return db.Config{
		Host: cli.DBHost,
		Port: cli.DBPort,
		User: cli.DBUser,
		Pass: cli.DBPassword,
		Name: cli.DBName,
		SSL:  cli.DBSSL,
	}
}

// LoadStore opens the pool under sys and returns the store built on it.
func LoadStore(ctx context.Context, cli CLI, sys *system.System) (*todos.Store, error) {
	pool, err := db.Load(ctx, "todo", "todo", DBConfig(cli), sys)
	if err != nil {
		return nil, err
	}
	return todos.NewStore(pool, schemaPath(cli)), nil
}

func LoadFacts(cli CLI) *facts.Client {
	return facts.New(facts.Config{
		BaseURL: cli.FactsBaseURL,
		Timeout: cli.FactsTimeout,
	})
}

func schemaPath(cli CLI) string {
	if cli.SchemaPath == "" {
		return migrations.DefaultPath
	}
	return cli.SchemaPath
}
