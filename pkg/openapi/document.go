package openapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Spec is an OpenAPI 3.1 document assembled from route group definitions.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       *Info               `json:"info"`
	Servers    []*Server           `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components *Components         `json:"components,omitempty"`
}

type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem maps lower-case HTTP methods to the operations on one path.
type PathItem map[string]*Operation

// Components holds the schemas and responses operations reference by name.
type Components struct {
	Schemas   map[string]*Schema   `json:"schemas,omitempty"`
	Responses map[string]*Response `json:"responses,omitempty"`
}

// documented lists the methods a PathItem may carry.
var documented = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// NewSpec creates a document with the shared error components registered.
func NewSpec(title, version string) *Spec {
	return &Spec{
		OpenAPI:    "3.1.0",
		Info:       &Info{Title: title, Version: version},
		Paths:      make(map[string]PathItem),
		Components: NewComponents(),
	}
}

func (s *Spec) AddServer(url string) {
	s.Servers = append(s.Servers, &Server{URL: url})
}

func (s *Spec) SetDescription(desc string) {
	s.Info.Description = desc
}

// AddOperation attaches op to path under method. Methods outside GET, POST,
// PUT, PATCH, and DELETE are ignored.
func (s *Spec) AddOperation(path, method string, op *Operation) {
	method = strings.ToUpper(method)
	if !documented[method] {
		return
	}

	item := s.Paths[path]
	if item == nil {
		item = make(PathItem)
		s.Paths[path] = item
	}
	item[strings.ToLower(method)] = op
}

// Operations counts the operations registered across all paths.
func (s *Spec) Operations() int {
	n := 0
	for _, item := range s.Paths {
		n += len(item)
	}
	return n
}

// MarshalJSON renders the document as indented JSON.
func MarshalJSON(spec *Spec) ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// ServeSpec serves a document rendered once at startup.
func ServeSpec(doc []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}
