package restapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/soi"
)

type itemPayload struct {
	Value string `json:"value"`
}

// GetStores responds with the list of registered store names as JSON.
func (s *Server) GetStores(c *gin.Context) {
	s.mutex.RLock()
	names := make([]string, 0, len(s.maps))
	for name := range s.maps {
		names = append(names, name)
	}
	s.mutex.RUnlock()
	c.IndentedJSON(http.StatusOK, names)
}

// CreateStore registers a new named map. An optional slotlength query
// parameter overrides the node capacity. Creating an existing store is a
// no-op returning the current store.
func (s *Server) CreateStore(c *gin.Context) {
	name := c.Param("name")
	options := soi.StoreOptions{Name: name}
	if sl := c.Query("slotlength"); sl != "" {
		v, err := strconv.Atoi(sl)
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "slotlength must be an integer"})
			return
		}
		options.SlotLength = v
	}
	if _, err := s.addMap(name, options); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusCreated, gin.H{"name": name})
}

// GetItem responds with the value stored at the key, 404 when absent.
func (s *Server) GetItem(c *gin.Context) {
	m := s.getMap(c.Param("name"))
	if m == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store not found"})
		return
	}
	value, found, err := m.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "key not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, itemPayload{Value: value})
}

// PutItem enqueues a write for the key. The write is asynchronous: 202 means
// accepted for application, not yet necessarily visible to readers.
func (s *Server) PutItem(c *gin.Context) {
	m := s.getMap(c.Param("name"))
	if m == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store not found"})
		return
	}
	var payload itemPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "body must be {\"value\": ...}"})
		return
	}
	prev, found, err := m.Put(c.Request.Context(), c.Param("key"), payload.Value)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	response := gin.H{"accepted": true}
	if found {
		response["previous"] = prev
	}
	c.IndentedJSON(http.StatusAccepted, response)
}

// DeleteItem enqueues a tombstone write for the key.
func (s *Server) DeleteItem(c *gin.Context) {
	m := s.getMap(c.Param("name"))
	if m == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store not found"})
		return
	}
	prev, found, err := m.Remove(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "key not found"})
		return
	}
	c.IndentedJSON(http.StatusAccepted, gin.H{"accepted": true, "previous": prev})
}

// DumpStore responds with the tree structure rendering plus counters.
func (s *Server) DumpStore(c *gin.Context) {
	m := s.getMap(c.Param("name"))
	if m == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "store not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"size":    m.Size(),
		"version": m.Version(),
		"pending": m.PendingWrites(),
		"tree":    m.String(),
	})
}

// Health reports per-store writer liveness; 503 when any store's writer task
// has died, since that store silently accumulates writes it never applies.
func (s *Server) Health(c *gin.Context) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	status := http.StatusOK
	stores := gin.H{}
	for name, m := range s.maps {
		healthy := m.Healthy()
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		stores[name] = healthy
	}
	c.IndentedJSON(status, gin.H{"stores": stores})
}
