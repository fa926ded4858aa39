package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
	"github.com/icpmtech/Open-Telemetry-Solutions/metricer"
)

type originalPathKey struct{}

// OriginalPath reports the path that failed when r is being re-executed
// against the error path by ExceptionHandler.
func OriginalPath(r *http.Request) (string, bool) {
	p, ok := r.Context().Value(originalPathKey{}).(string)
	return p, ok
}

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// failure runs next and returns whatever went unhandled below: a panic, or
// an error recorded on the context with nothing written yet.
func failure(c *gin.Context, next func()) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			if len(c.Errors) > 0 && !c.Writer.Written() {
				err = c.Errors.Last().Err
			}
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		err = &PanicError{Value: rec, Stack: debug.Stack()}
	}()
	next()
	return nil
}

func recordFailure(c *gin.Context, stage string, err error) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	eto.Log().FromContext(ctx).Error().
		Msg("unhandled exception while executing request").
		Field("stage", stage).
		Field("method", c.Request.Method).
		Field("path", c.Request.URL.Path).
		Err(err).
		Send()
}

// ExceptionHandler catches any failure from later stages and re-executes the
// request against errorPath through the whole chain, so the error page goes
// through the same routing and dispatch as any other page. A failure while
// already on the error path, or after the response started, ends the request
// with a bare 500.
func ExceptionHandler(engine *gin.Engine, errorPath string) Stage {
	return Stage{
		Name: StageExceptionHandler,
		Handler: func(c *gin.Context) {
			err := failure(c, c.Next)
			if err == nil {
				return
			}
			recordFailure(c, StageExceptionHandler, err)

			if _, again := OriginalPath(c.Request); again || c.Writer.Written() {
				if !c.Writer.Written() {
					c.AbortWithStatus(http.StatusInternalServerError)
				} else {
					c.Abort()
				}
				return
			}

			metricer.Stage(c.Request.Context(), StageExceptionHandler, metricer.OutcomeHandled)

			r := c.Request.WithContext(context.WithValue(c.Request.Context(), originalPathKey{}, c.Request.URL.Path))
			u := *r.URL
			u.Path = errorPath
			u.RawPath = ""
			r.URL = &u
			c.Request = r

			c.Status(http.StatusInternalServerError)
			engine.HandleContext(c)
			c.Abort()
		},
	}
}

// DeveloperExceptionPage renders the failure and its stack as plain text.
// Only meant for Development.
func DeveloperExceptionPage() Stage {
	return Stage{
		Name: StageDeveloperExceptionPage,
		Handler: func(c *gin.Context) {
			err := failure(c, c.Next)
			if err == nil {
				return
			}
			recordFailure(c, StageDeveloperExceptionPage, err)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			var b strings.Builder
			fmt.Fprintf(&b, "An unhandled exception occurred while processing the request.\n\n")
			fmt.Fprintf(&b, "%s %s\n\n%v\n", c.Request.Method, c.Request.URL.Path, err)
			for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
				fmt.Fprintf(&b, "  caused by: %v\n", e)
			}
			var pe *PanicError
			if errors.As(err, &pe) {
				fmt.Fprintf(&b, "\n%s", pe.Stack)
			}

			c.Header("Cache-Control", "no-cache, no-store")
			c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte(b.String()))
			c.Abort()
		},
	}
}
