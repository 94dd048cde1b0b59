package routes

import (
	"net/http"

	"github.com/JaimeStill/covenant/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler.
// OpenAPI is optional documentation emitted by Document.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}
