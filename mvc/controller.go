// Package mvc dispatches requests to controller actions through conventional
// routing ({controller=Home}/{action=Index}/{id?}) and renders embedded views.
//
// It contributes the last three pipeline stages: Routing resolves the
// endpoint, Authorization checks it, Endpoints runs the action.
package mvc

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

var ErrDuplicateAction = errors.New("mvc: duplicate action")

type ActionFunc func(ctx *ActionContext) error

type Action struct {
	Name    string
	Methods []string // empty allows any method
	Handler ActionFunc

	// Authorize requires an authenticated principal; Roles additionally
	// requires one of the listed roles.
	Authorize bool
	Roles     []string
}

type Controller interface {
	// Name is the route name, e.g. "Home" for /Home/Index.
	Name() string
	Actions() []Action
}

// Endpoint is a resolved controller action.
type Endpoint struct {
	Controller  string
	Action      Action
	DisplayName string
}

func (e *Endpoint) AllowsMethod(method string) bool {
	if len(e.Action.Methods) == 0 {
		return true
	}
	if method == http.MethodHead && slices.Contains(e.Action.Methods, http.MethodGet) {
		return true
	}
	return slices.Contains(e.Action.Methods, method)
}

func (e *Endpoint) RequiresAuthorization() bool {
	return e.Action.Authorize || len(e.Action.Roles) > 0
}

// Registry indexes actions by controller and action name, case-insensitively.
type Registry struct {
	endpoints map[string]*Endpoint
	ordered   []*Endpoint
}

func endpointKey(controller, action string) string {
	return strings.ToLower(controller) + "/" + strings.ToLower(action)
}

func NewRegistry(controllers ...Controller) (*Registry, error) {
	r := &Registry{endpoints: map[string]*Endpoint{}}
	for _, ctrl := range controllers {
		name := ctrl.Name()
		if name == "" {
			return nil, fmt.Errorf("mvc: controller %T has no name", ctrl)
		}
		for _, a := range ctrl.Actions() {
			if a.Name == "" || a.Handler == nil {
				return nil, fmt.Errorf("mvc: controller %s: action needs a name and a handler", name)
			}
			key := endpointKey(name, a.Name)
			if _, dup := r.endpoints[key]; dup {
				return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateAction, name, a.Name)
			}
			ep := &Endpoint{
				Controller:  name,
				Action:      a,
				DisplayName: name + "Controller." + a.Name,
			}
			r.endpoints[key] = ep
			r.ordered = append(r.ordered, ep)
		}
	}
	return r, nil
}

func (r *Registry) Lookup(controller, action string) (*Endpoint, bool) {
	ep, ok := r.endpoints[endpointKey(controller, action)]
	return ep, ok
}

// Endpoints lists every action in registration order.
func (r *Registry) Endpoints() []*Endpoint {
	return slices.Clone(r.ordered)
}
