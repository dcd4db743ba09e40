// Package restapi exposes named in-memory maps over a small HTTP surface,
// for diagnostics and light integration use. Handlers are gin-based; the
// payloads are string keyed, string valued.
package restapi

import (
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/soi"
	"github.com/sharedcode/soi/inmemory"
)

// Server manages a registry of named maps and the HTTP handlers over them.
type Server struct {
	mutex sync.RWMutex
	maps  map[string]*inmemory.Map[string, string]
}

func NewServer() *Server {
	return &Server{
		maps: make(map[string]*inmemory.Map[string, string]),
	}
}

// Router builds the gin engine with all endpoints registered.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.GET("/health", s.Health)
	router.GET("/stores", s.GetStores)
	router.POST("/stores/:name", s.CreateStore)
	router.GET("/stores/:name/dump", s.DumpStore)
	router.GET("/stores/:name/items/:key", s.GetItem)
	router.PUT("/stores/:name/items/:key", s.PutItem)
	router.DELETE("/stores/:name/items/:key", s.DeleteItem)
	return router
}

// Shutdown terminates the writer task of every registered map.
func (s *Server) Shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, m := range s.maps {
		m.Terminate()
	}
	s.maps = make(map[string]*inmemory.Map[string, string])
}

func (s *Server) getMap(name string) *inmemory.Map[string, string] {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.maps[name]
}

func (s *Server) addMap(name string, options soi.StoreOptions) (*inmemory.Map[string, string], error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if existing, ok := s.maps[name]; ok {
		return existing, nil
	}
	m, err := inmemory.NewMap[string, string](options)
	if err != nil {
		return nil, err
	}
	s.maps[name] = m
	return m, nil
}
