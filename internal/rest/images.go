package rest

import (
	"net/http"

	"github.com/dfryer1193/gocatalog/catalog/media"
	"github.com/gin-gonic/gin"
)

// ServeImage streams a stored file. Stored names are never reused, so the
// response may be cached indefinitely.
func (h *ProductHandler) ServeImage(c *gin.Context) {
	name := c.Param("name")

	f, info, err := h.catalog.OpenImage(name)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", media.ContentType(name))
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
