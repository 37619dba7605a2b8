package httpadapter

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var openAPISpec []byte

func loadOpenAPIRouter() (routers.Router, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return router, nil
}

// openAPIValidationMiddleware rejects requests whose parameters or JSON body
// do not match the embedded spec. Unknown routes pass through so the mux can
// answer 404 or 405.
func openAPIValidationMiddleware(router routers.Router, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validationMessage keeps the response short: the failing parameter or body
// field and the schema reason, without the schema dump.
func validationMessage(err error) string {
	subject := "request"
	var requestErr *openapi3filter.RequestError
	if errors.As(err, &requestErr) {
		switch {
		case requestErr.Parameter != nil:
			subject = fmt.Sprintf("parameter %q", requestErr.Parameter.Name)
		case requestErr.RequestBody != nil:
			subject = "request body"
		}
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if path := schemaErr.JSONPointer(); len(path) > 0 {
			return fmt.Sprintf("invalid %s: %s: %s", subject, strings.Join(path, "."), schemaErr.Reason)
		}
		return fmt.Sprintf("invalid %s: %s", subject, schemaErr.Reason)
	}
	if requestErr != nil && requestErr.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", subject, requestErr.Reason)
	}
	return "invalid request: " + err.Error()
}
