// Package pipeline composes the request middleware chain.
//
// The chain is declared as (predicate, stage) steps. Compose evaluates every
// predicate once against the hosting environment and yields a fixed, ordered
// list of stages; Install puts that list on a gin engine. Nothing in the
// request path branches on the environment afterwards.
package pipeline

import (
	"github.com/gin-gonic/gin"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
)

// Stage names, in the order the composer installs them.
const (
	StageInstrumentation        = "instrumentation"
	StageDeveloperExceptionPage = "developer-exception-page"
	StageExceptionHandler       = "exception-handler"
	StageHSTS                   = "hsts"
	StageHTTPSRedirection       = "https-redirection"
	StageStaticFiles            = "static-files"
	StageRouting                = "routing"
	StageAuthorization          = "authorization"
	StageEndpoints              = "endpoints"
)

// Environment is the hosting environment name (Development, Staging, Production...).
type Environment string

func (e Environment) IsDevelopment() bool {
	return eto.IsDevelopment(string(e))
}

// Predicate decides at startup whether a step is part of the chain.
type Predicate func(Environment) bool

func Always(Environment) bool { return true }

func Development(e Environment) bool { return e.IsDevelopment() }

func NotDevelopment(e Environment) bool { return !e.IsDevelopment() }

type Stage struct {
	Name    string
	Handler gin.HandlerFunc
}

type Step struct {
	When  Predicate // nil means Always
	Stage Stage
}

// Compose returns the stages whose predicate holds, in declaration order.
func Compose(env Environment, steps []Step) []Stage {
	stages := make([]Stage, 0, len(steps))
	for _, s := range steps {
		if s.When != nil && !s.When(env) {
			continue
		}
		stages = append(stages, s.Stage)
	}
	return stages
}

func Names(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

// Install appends the stages as global middleware. The engine must not have
// any gin routes: every request falls through to the no-route chain, so the
// stages alone decide how it is handled.
func Install(engine *gin.Engine, stages []Stage) {
	handlers := make([]gin.HandlerFunc, len(stages))
	for i, s := range stages {
		handlers[i] = s.Handler
	}
	engine.Use(handlers...)
}
