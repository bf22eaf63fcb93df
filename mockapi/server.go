// Package mockapi is an in-memory implementation of the task-management REST
// API. It backs the client's end-to-end tests and local development; nothing
// it stores survives a restart.
package mockapi

import (
	"crypto/rand"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

// Config configures a Server. Zero values select defaults.
type Config struct {
	// Secret signs session cookies. A random secret is generated when empty.
	Secret     []byte
	SessionTTL time.Duration
	Deduper    Deduper
	Logger     *log.Logger
	Now        func() time.Time
	// BcryptCost lowers hashing cost in tests.
	BcryptCost int
}

// Server holds the in-memory state and the HTTP handlers over it.
type Server struct {
	store    *store
	sessions *sessions
	deduper  Deduper
	log      *log.Logger
	now      func() time.Time
	validate *validator.Validate
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Deduper == nil {
		cfg.Deduper = NewMemoryDeduper(0)
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Secret); err != nil {
			return nil, err
		}
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Server{
		store:    newStore(cfg.BcryptCost),
		sessions: newSessions(cfg.Secret, cfg.SessionTTL, cfg.Now),
		deduper:  cfg.Deduper,
		log:      cfg.Logger,
		now:      cfg.Now,
		validate: v,
	}, nil
}

// Echo returns an echo instance with every route and middleware registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Validator = s
	e.Use(middleware.Recover())
	e.Use(requestLogger(s.log))
	e.Use(inflateRequests())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderContentEncoding, echo.HeaderAccept, headerRequestID, headerIdempotencyKey, headerTimezone},
		AllowCredentials: true,
	}))
	s.Register(e)
	return e
}

// Validate implements echo.Validator.
func (s *Server) Validate(i any) error {
	if err := s.validate.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return echo.NewHTTPError(http.StatusBadRequest, "invalid fields: "+strings.Join(fields, ", "))
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	return nil
}
