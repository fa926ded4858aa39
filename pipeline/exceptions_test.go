package pipeline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testErrorPath = "/Home/Error"

// terminal stands in for routing and dispatch.
func terminal(errorPageFails bool) Stage {
	return Stage{Name: "terminal", Handler: func(c *gin.Context) {
		switch c.Request.URL.Path {
		case testErrorPath:
			if errorPageFails {
				panic("error page broken")
			}
			status := http.StatusOK
			original, ok := OriginalPath(c.Request)
			if ok {
				status = http.StatusInternalServerError
			}
			c.String(status, "error page for %s", original)
		case "/panic":
			panic("kaboom")
		case "/fail":
			_ = c.Error(errors.New("action failed"))
		case "/late":
			c.String(http.StatusOK, "partial")
			panic("after write")
		default:
			c.String(http.StatusOK, "ok")
		}
	}}
}

func newExceptionEngine(errorPageFails bool) *gin.Engine {
	engine := setupTestEngine()
	Install(engine, []Stage{
		ExceptionHandler(engine, testErrorPath),
		terminal(errorPageFails),
	})
	return engine
}

func TestExceptionHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "success passes through", path: "/", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "panic re-executes error path", path: "/panic", wantStatus: http.StatusInternalServerError, wantBody: "error page for /panic"},
		{name: "recorded error re-executes error path", path: "/fail", wantStatus: http.StatusInternalServerError, wantBody: "error page for /fail"},
		{name: "error path requested directly", path: testErrorPath, wantStatus: http.StatusOK, wantBody: "error page for "},
		{name: "failure after write keeps response", path: "/late", wantStatus: http.StatusOK, wantBody: "partial"},
	}

	engine := newExceptionEngine(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestExceptionHandlerErrorPageFailure(t *testing.T) {
	engine := newExceptionEngine(true)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestExceptionHandlerKeepsQuery(t *testing.T) {
	engine := setupTestEngine()
	var rawQuery string
	Install(engine, []Stage{
		ExceptionHandler(engine, testErrorPath),
		{Name: "terminal", Handler: func(c *gin.Context) {
			if c.Request.URL.Path == testErrorPath {
				rawQuery = c.Request.URL.RawQuery
				c.Status(http.StatusInternalServerError)
				return
			}
			panic("boom")
		}},
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders?id=7", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "id=7", rawQuery)
}

func TestDeveloperExceptionPage(t *testing.T) {
	engine := setupTestEngine()
	Install(engine, []Stage{DeveloperExceptionPage(), terminal(false)})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	body := w.Body.String()
	assert.Contains(t, body, "GET /panic")
	assert.Contains(t, body, "panic: kaboom")
	assert.Contains(t, body, "goroutine")

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "action failed")
}

func TestPanicErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := error(&PanicError{Value: cause})

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "panic: root cause", err.Error())
	assert.Nil(t, (&PanicError{Value: 42}).Unwrap())
}
