// Package middleware provides the HTTP middleware stack shared by mounted
// modules along with the request ID, recovery, CORS, and access-log layers.
package middleware

import "net/http"

// Func wraps a handler with additional behavior.
type Func = func(http.Handler) http.Handler

// System is an ordered middleware stack. The first registered layer is
// the outermost one at request time.
type System interface {
	Use(layers ...Func)
	Apply(handler http.Handler) http.Handler
	Len() int
}

type stack struct {
	layers []Func
}

func New() System {
	return &stack{}
}

func (s *stack) Use(layers ...Func) {
	for _, l := range layers {
		if l != nil {
			s.layers = append(s.layers, l)
		}
	}
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.layers) - 1; i >= 0; i-- {
		handler = s.layers[i](handler)
	}
	return handler
}

func (s *stack) Len() int {
	return len(s.layers)
}
