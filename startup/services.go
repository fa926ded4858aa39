package startup

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
	"github.com/icpmtech/Open-Telemetry-Solutions/mvc"
)

var (
	ErrServicesSealed = errors.New("startup: services cannot be registered after Build")
	ErrNoControllers  = errors.New("startup: no controllers registered")
)

// ServiceCollection gathers what the application is built from. Build seals it.
type ServiceCollection struct {
	mu     sync.Mutex
	sealed bool

	controllers []mvc.Controller
	views       fs.FS
	static      fs.FS
	resolver    mvc.PrincipalResolver
	telemetry   *telemetryRegistration
}

type telemetryRegistration struct {
	cfg  eto.Config
	opts []eto.Option
}

func (s *ServiceCollection) register(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrServicesSealed
	}
	fn()
	return nil
}

// AddControllersWithViews registers controllers and the view tree they render from.
func (s *ServiceCollection) AddControllersWithViews(views fs.FS, controllers ...mvc.Controller) error {
	return s.register(func() {
		s.controllers = append(s.controllers, controllers...)
		if views != nil {
			s.views = views
		}
	})
}

func (s *ServiceCollection) AddStaticFiles(root fs.FS) error {
	return s.register(func() { s.static = root })
}

// AddAuthorization sets how the authorization stage identifies callers.
func (s *ServiceCollection) AddAuthorization(resolve mvc.PrincipalResolver) error {
	return s.register(func() { s.resolver = resolve })
}

// AddOpenTelemetry registers the tracing pipeline. The providers are created by Build.
func (s *ServiceCollection) AddOpenTelemetry(cfg eto.Config, opts ...eto.Option) error {
	return s.register(func() {
		s.telemetry = &telemetryRegistration{cfg: cfg, opts: opts}
	})
}

// seal freezes the collection and returns a snapshot of it.
func (s *ServiceCollection) seal() *ServiceCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	return &ServiceCollection{
		sealed:      true,
		controllers: append([]mvc.Controller(nil), s.controllers...),
		views:       s.views,
		static:      s.static,
		resolver:    s.resolver,
		telemetry:   s.telemetry,
	}
}
