package main

import (
	"context"
	"errors"
	"fmt"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/circleci/todo/api"
	"github.com/circleci/todo/cmd/setup"
	"github.com/circleci/todo/errs"
	"github.com/circleci/todo/facts"
	"github.com/circleci/todo/httpserver"
	"github.com/circleci/todo/httpserver/healthcheck"
	"github.com/circleci/todo/o11y"
	"github.com/circleci/todo/rundef"
	"github.com/circleci/todo/system"
	"github.com/circleci/todo/termination"
	"github.com/circleci/todo/todos"
)

// Set at build time with -ldflags "-X main.version=... -X main.date=..."
var (
	version = "dev"
	date    = "unknown"
)

type cli struct {
	setup.CLI

	Serve      serveCmd      `cmd:"" help:"Serve the todo API"`
	InitSchema initSchemaCmd `cmd:"" name:"init-schema" help:"Apply the schema and exit"`
	Fact       factCmd       `cmd:"" help:"Print a random fact and exit"`
}

type serveCmd struct {
	InitSchema    bool          `name:"init-schema" env:"INIT_SCHEMA" default:"true" negatable:"" help:"Apply the schema before serving"`
	ShutdownDelay time.Duration `env:"SHUTDOWN_DELAY" default:"5s" help:"Delay shutdown by this amount" hidden:""`
	APIAddr       string        `env:"API_ADDR" default:":8000" help:"The address for the API to listen on"`
	AdminAddr     string        `env:"ADMIN_ADDR" default:":8001" help:"The address for the admin api to listen on"`
}

type initSchemaCmd struct{}

type factCmd struct{}

func main() {
	c := cli{}
	kctx := kong.Parse(&c,
		kong.Name("todo"),
		kong.Description("A todo list service, with a fact on the side."),
	)

	err := kctx.Run(&c.CLI)
	switch {
	case err == nil, errors.Is(err, termination.ErrTerminated):
		log.Println("exited 0")
	default:
		log.Println("Unexpected Error: ", err)
		os.Exit(errs.ExitCode(err))
	}
}

func (s *serveCmd) Run(cli *setup.CLI) (err error) {
	ctx, o11yCleanup, err := setup.LoadO11y(version, "serve", *cli)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11y.StartSpan(ctx, "main: serve")
	defer o11y.End(runSpan, &err)

	o11y.Log(ctx, "starting todo api",
		o11y.Field("version", version),
		o11y.Field("date", date),
	)

	if rErr := rundef.Defaults(ctx); rErr != nil {
		o11y.LogError(ctx, "main: runtime defaults", rErr)
	}

	sys := system.New(ctx)
	defer func() { _ = sys.Cleanup(ctx) }()

	store, err := setup.LoadStore(ctx, *cli, sys)
	if err != nil {
		return err
	}

	if s.InitSchema {
		err = store.InitSchema(ctx)
		if err != nil {
			return err
		}
	}

	err = loadAPI(ctx, s.APIAddr, store, setup.LoadFacts(*cli), sys)
	if err != nil {
		return err
	}

	// Should be last so it collects all the health checks
	_, err = healthcheck.Load(ctx, s.AdminAddr, sys)
	if err != nil {
		return err
	}

	return sys.Run(s.ShutdownDelay)
}

func loadAPI(ctx context.Context, addr string, store todos.Accessor, f facts.Getter, sys *system.System) error {
	a := api.New(ctx, api.Options{
		Store: store,
		Facts: f,
	})

	_, err := httpserver.Load(ctx, httpserver.Config{
		Name:    "api",
		Addr:    addr,
		Handler: a.Handler(),
	}, sys)
	return err
}

func (initSchemaCmd) Run(cli *setup.CLI) (err error) {
	ctx, o11yCleanup, err := setup.LoadO11y(version, "init-schema", *cli)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, span := o11y.StartSpan(ctx, "main: init-schema")
	defer o11y.End(span, &err)

	sys := system.New(ctx)
	defer func() { _ = sys.Cleanup(ctx) }()

	store, err := setup.LoadStore(ctx, *cli, sys)
	if err != nil {
		return err
	}
	return store.InitSchema(ctx)
}

func (factCmd) Run(cli *setup.CLI) (err error) {
	ctx, o11yCleanup, err := setup.LoadO11y(version, "fact", *cli)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, span := o11y.StartSpan(ctx, "main: fact")
	defer o11y.End(span, &err)

	text, err := setup.LoadFacts(*cli).RandomFact(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, text)
	return err
}
