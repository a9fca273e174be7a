package mw

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CatalogCache keeps rendered machine and module listings. A listing only
// varies by route and the includeInactive flag, so those two make the key
// and any other query string maps onto the same entry.
type CatalogCache struct {
	entries *cache.Cache
}

type catalogEntry struct {
	contentType string
	body        []byte
}

func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{entries: cache.New(ttl, 2*ttl)}
}

func catalogKey(c *gin.Context) string {
	inactive, _ := strconv.ParseBool(c.Query("includeInactive"))
	return c.FullPath() + "?includeInactive=" + strconv.FormatBool(inactive)
}

// bodyRecorder tees the handler's body so a 200 can be stored.
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Listing serves a stored listing or records the handler's 200 response.
func (cc *CatalogCache) Listing() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := catalogKey(c)
		if v, ok := cc.entries.Get(key); ok {
			e := v.(catalogEntry)
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, e.contentType, e.body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		if rec.Status() == http.StatusOK {
			cc.entries.SetDefault(key, catalogEntry{
				contentType: rec.Header().Get("Content-Type"),
				body:        append([]byte(nil), rec.body.Bytes()...),
			})
		}
	}
}

// Flush drops every stored listing.
func (cc *CatalogCache) Flush() {
	cc.entries.Flush()
}

// FlushOnWrite runs the catalog write and flushes once it succeeds, so the
// next listing reflects the change instead of waiting out the TTL.
func (cc *CatalogCache) FlushOnWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if s := c.Writer.Status(); s >= 200 && s < 300 {
			cc.Flush()
		}
	}
}
