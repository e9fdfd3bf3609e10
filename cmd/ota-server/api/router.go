package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/ghodss/yaml"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	nethttpmiddleware "github.com/oapi-codegen/nethttp-middleware"
	kernelota "github.com/onkernel/kernel-ota"
	"github.com/onkernel/kernel-ota/lib/middleware"
	"github.com/onkernel/kernel-ota/lib/oapi"
	"github.com/riandyrn/otelchi"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AccessLog receives one line per request and is injected into request contexts.
	AccessLog *slog.Logger
	// HTTPMetrics records request metrics; nil disables them.
	HTTPMetrics *middleware.HTTPMetrics
	// ServiceName names the server in traces.
	ServiceName string
}

// NewRouter assembles the HTTP surface: the OpenAPI document, and the API
// routes behind request validation.
func NewRouter(svc *ApiService, opts RouterOptions) (http.Handler, error) {
	if opts.AccessLog == nil {
		opts.AccessLog = slog.Default()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "ota-server"
	}

	swagger, err := openapi3.NewLoader().LoadFromData(kernelota.OpenAPIYAML)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	// Requests are matched on path only, whatever host clients use.
	swagger.Servers = nil

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(otelchi.Middleware(opts.ServiceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.InjectLogger(opts.AccessLog))
	r.Use(middleware.AccessLogger(opts.AccessLog))
	if opts.HTTPMetrics != nil {
		r.Use(opts.HTTPMetrics.Middleware)
	} else {
		r.Use(middleware.NoopHTTPMetrics())
	}
	r.Use(chimw.Recoverer)

	// Unmatched paths such as /kernels/ or /kernels/a/b get the JSON body too.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, msgFileNotFound)
	})

	// Serve OpenAPI spec
	r.Get("/spec.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oai.openapi")
		w.Write(kernelota.OpenAPIYAML)
	})

	r.Get("/spec.json", func(w http.ResponseWriter, r *http.Request) {
		jsonData, err := yaml.YAMLToJSON(kernelota.OpenAPIYAML)
		if err != nil {
			http.Error(w, "Failed to convert YAML to JSON", http.StatusInternalServerError)
			opts.AccessLog.ErrorContext(r.Context(), "Failed to convert YAML to JSON", "error", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
	})

	r.Group(func(r chi.Router) {
		r.Use(nethttpmiddleware.OapiRequestValidatorWithOptions(swagger, &nethttpmiddleware.Options{
			ErrorHandler:          validationError,
			SilenceServersWarning: true,
		}))

		strictHandler := oapi.NewStrictHandler(svc, nil)
		oapi.HandlerWithOptions(strictHandler, oapi.ChiServerOptions{
			BaseRouter: r,
			// A filename that cannot be decoded names no file.
			ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
				writeError(w, http.StatusNotFound, msgFileNotFound)
			},
		})
	})

	return r, nil
}

// validationError keeps rejected requests inside the documented outcomes:
// a path the validator cannot match is reported as a missing file.
func validationError(w http.ResponseWriter, message string, statusCode int) {
	if statusCode == http.StatusNotFound {
		writeError(w, http.StatusNotFound, msgFileNotFound)
		return
	}
	writeError(w, statusCode, http.StatusText(statusCode))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(oapi.Error{Error: message})
}
