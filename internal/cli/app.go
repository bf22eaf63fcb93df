package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yukikurage/task-management-front/apiclient"
	"github.com/yukikurage/task-management-front/domain"
	"github.com/yukikurage/task-management-front/orchestrator"
	"github.com/yukikurage/task-management-front/orgcache"
	"github.com/yukikurage/task-management-front/overlay"
	"github.com/yukikurage/task-management-front/refresh"
)

const anonymousScope = "anonymous"

var errNotLoggedIn = errors.New("not logged in; run `tasker auth login`")

// app is the wiring shared by every command.
type app struct {
	cfg     Config
	cfgFile string
	out     printer
	errOut  io.Writer
	in      *bufio.Reader
	logger  *log.Logger
	api     *apiclient.Client
	broker  *refresh.Broker
	orgs    *orgcache.Cache
	bridge  *refresh.RedisBridge
	redis   *redis.Client
	tracer  *sdktrace.TracerProvider
	overlay *overlay.Registry
	session sessionFile
}

func newApp(cfg Config, stdout, stderr io.Writer, stdin io.Reader) (*app, error) {
	logger := log.New()
	logger.SetOutput(stderr)
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		out:     printer{w: stdout, format: cfg.Output, loc: loc},
		errOut:  stderr,
		in:      bufio.NewReader(stdin),
		logger:  logger,
		broker:  refresh.NewBroker(),
		overlay: overlay.NewRegistry(),
	}

	opts := []apiclient.Option{apiclient.WithLogger(logger), apiclient.WithLocation(loc)}
	if cfg.Timeout > 0 {
		opts = append(opts, apiclient.WithTimeout(cfg.Timeout))
	}
	if cfg.Trace {
		logger.SetLevel(log.DebugLevel)
		a.tracer = newTracerProvider(logger)
		opts = append(opts, apiclient.WithTracerProvider(a.tracer))
	}
	a.api, err = apiclient.New(cfg.APIBaseURL, opts...)
	if err != nil {
		return nil, err
	}

	sf, cookies, err := loadSession(cfg.SessionFile, a.api.BaseURL())
	if err != nil {
		logger.WithError(err).Warn("cli: ignoring unreadable session file")
	}
	a.session = sf
	a.session.BaseURL = a.api.BaseURL()
	if len(cookies) > 0 {
		a.api.SetCookies(cookies)
	}

	store := orgcache.Store(orgcache.NewMemoryStore(cfg.CacheTTL))
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis_url: %w", err)
		}
		a.redis = redis.NewClient(redisOpts)
		store = orgcache.NewRedisStore(a.redis, cfg.CacheTTL)
		channel := cfg.RefreshChannel
		if channel == "" {
			channel = refresh.DefaultChannel
		}
		a.bridge = refresh.NewRedisBridge(a.redis, a.broker, channel, logger)
	}
	scope := a.session.Username
	if scope == "" {
		scope = anonymousScope
	}
	a.orgs = orgcache.New(a.api, orgcache.WithStore(store), orgcache.WithScope(scope), orgcache.WithLogger(logger))
	a.orgs.Follow(a.broker)
	return a, nil
}

func (a *app) deps() orchestrator.Deps {
	return orchestrator.Deps{Broker: a.broker, Logger: a.logger, Lang: a.cfg.Language()}
}

// signedIn records the user owning the session and rescopes the cache.
func (a *app) signedIn(u domain.User) {
	a.session.Username = u.Username
	a.orgs.SetScope(u.Username)
}

func (a *app) signedOut() {
	a.session.Username = ""
	a.orgs.SetScope(anonymousScope)
}

// close persists the session and releases connections.
func (a *app) close(ctx context.Context) error {
	err := saveSession(a.cfg.SessionFile, a.session, a.api.Cookies())
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.logger.WithError(cerr).Debug("cli: closing redis")
		}
	}
	if a.tracer != nil {
		if terr := a.tracer.Shutdown(ctx); terr != nil {
			a.logger.WithError(terr).Debug("cli: shutting down tracer")
		}
	}
	return err
}

// prompt writes question to stderr and reads one line of input.
func (a *app) prompt(question string) (string, error) {
	fmt.Fprint(a.errOut, question)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question; anything but y or yes declines.
func (a *app) confirm(question string) bool {
	answer, err := a.prompt(question + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// dialogError surfaces the localized message a dialog recorded for err.
type dialogError struct {
	msg string
	err error
}

func (e *dialogError) Error() string { return e.msg }
func (e *dialogError) Unwrap() error { return e.err }

func failed(d interface{ Err() string }, err error) error {
	if msg := d.Err(); msg != "" {
		return &dialogError{msg: msg, err: err}
	}
	return err
}
