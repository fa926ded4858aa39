package pipeline

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func recordingStage(name string, seen *[]string) Stage {
	return Stage{Name: name, Handler: func(c *gin.Context) {
		*seen = append(*seen, name)
		c.Next()
	}}
}

func TestEnvironmentIsDevelopment(t *testing.T) {
	assert.True(t, Environment("Development").IsDevelopment())
	assert.False(t, Environment("Staging").IsDevelopment())
	assert.False(t, Environment("Production").IsDevelopment())
}

func TestCompose(t *testing.T) {
	var seen []string
	steps := []Step{
		{Stage: recordingStage("a", &seen)},
		{When: Development, Stage: recordingStage("dev", &seen)},
		{When: NotDevelopment, Stage: recordingStage("prod", &seen)},
		{When: Always, Stage: recordingStage("z", &seen)},
	}

	tests := []struct {
		env  Environment
		want []string
	}{
		{env: "Development", want: []string{"a", "dev", "z"}},
		{env: "Production", want: []string{"a", "prod", "z"}},
		{env: "Staging", want: []string{"a", "prod", "z"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			stages := Compose(tt.env, steps)
			assert.Equal(t, tt.want, Names(stages))
			assert.Equal(t, Names(stages), Names(Compose(tt.env, steps)))
		})
	}
}

func TestInstallRunsStagesInOrder(t *testing.T) {
	var seen []string
	engine := setupTestEngine()
	Install(engine, []Stage{
		recordingStage("first", &seen),
		recordingStage("second", &seen),
		{Name: "terminal", Handler: func(c *gin.Context) {
			seen = append(seen, "terminal")
			c.String(http.StatusOK, "done")
		}},
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything/at/all", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"first", "second", "terminal"}, seen)
}

func TestInstallUnhandledIsNotFound(t *testing.T) {
	var seen []string
	engine := setupTestEngine()
	Install(engine, []Stage{recordingStage("only", &seen)})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"only"}, seen)
}
