package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"ventasbi/internal/writer"
)

// Health returns a JSON health check response. Reports whether a published
// run is available; never exposes paths or internals.
func Health(outputDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		published := true
		if _, err := os.Stat(filepath.Join(outputDir, writer.FactsFile)); err != nil {
			published = false
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"published": published,
		})
	}
}
