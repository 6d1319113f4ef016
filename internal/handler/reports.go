package handler

import (
	"encoding/csv"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"ventasbi/internal/apierror"
	"ventasbi/internal/writer"
)

// ReportsHandler serves the latest written run from the output directory.
// It reads straight from disk on every request: runs replace the directory
// atomically, so a reader always sees a complete, certified table set.
type ReportsHandler struct {
	dir string
}

func NewReportsHandler(outputDir string) *ReportsHandler {
	return &ReportsHandler{dir: outputDir}
}

func (h *ReportsHandler) Facts(c *gin.Context)      { h.serveTable(c, writer.FactsFile) }
func (h *ReportsHandler) Channels(c *gin.Context)   { h.serveTable(c, writer.ChannelsFile) }
func (h *ReportsHandler) Categories(c *gin.Context) { h.serveTable(c, writer.CategoriesFile) }
func (h *ReportsHandler) Articles(c *gin.Context)   { h.serveTable(c, writer.ArticlesFile) }

// Audit returns the reconciliation artifact of the latest run verbatim.
func (h *ReportsHandler) Audit(c *gin.Context) {
	path := filepath.Join(h.dir, writer.AuditReportFile)
	data, err := os.ReadFile(path)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("Sin corridas publicadas"))
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// serveTable renders one CSV table as an array of objects keyed by the
// header row.
func (h *ReportsHandler) serveTable(c *gin.Context, file string) {
	f, err := os.Open(filepath.Join(h.dir, file))
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("Sin corridas publicadas"))
		return
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	records, err := r.ReadAll()
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{"data": []map[string]string{}, "total": 0})
		return
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
}
