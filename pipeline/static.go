package pipeline

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/icpmtech/Open-Telemetry-Solutions/metricer"
)

// StaticFiles serves GET and HEAD requests for files present in root and
// ends the chain there. Anything else, directories included, falls through.
func StaticFiles(root fs.FS) Stage {
	files := http.FileServer(http.FS(root))

	return Stage{
		Name: StageStaticFiles,
		Handler: func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.Next()
				return
			}

			name := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
			if name == "" {
				c.Next()
				return
			}
			info, err := fs.Stat(root, name)
			if err != nil || info.IsDir() {
				c.Next()
				return
			}

			metricer.Stage(c.Request.Context(), StageStaticFiles, metricer.OutcomeServed, "path", "/"+name)
			files.ServeHTTP(c.Writer, c.Request)
			c.Abort()
		},
	}
}
