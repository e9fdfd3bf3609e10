// Package oapi holds the typed request and response objects of the HTTP API
// described by openapi.yaml, the strict server interface implementations
// satisfy, and the chi binding that routes requests to it.
//
// Every operation returns exactly one variant of its ResponseObject
// interface; each variant knows how to serialize itself.
package oapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Health defines model for Health.
type Health struct {
	Status string `json:"status"`
}

// Error defines model for Error.
type Error struct {
	Error string `json:"error"`
}

// KernelInfo is the client-facing view of the latest kernel.
type KernelInfo struct {
	LatestVersion string `json:"latest_version"`
	KernelFile    string `json:"kernel_file"`
	FileSize      uint64 `json:"file_size"`
	Checksum      string `json:"checksum"`
	ReleaseDate   string `json:"release_date"`
	Description   string `json:"description"`
	DownloadUrl   string `json:"download_url"`
}

// ChecksumHeader carries the digest of a download response body.
const ChecksumHeader = "x-checksum"

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GetHealth

type GetHealthRequestObject struct{}

type GetHealthResponseObject interface {
	VisitGetHealthResponse(w http.ResponseWriter) error
}

type GetHealth200JSONResponse Health

func (response GetHealth200JSONResponse) VisitGetHealthResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

// GetVersion

type GetVersionRequestObject struct{}

type GetVersionResponseObject interface {
	VisitGetVersionResponse(w http.ResponseWriter) error
}

type GetVersion200JSONResponse KernelInfo

func (response GetVersion200JSONResponse) VisitGetVersionResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, response)
}

type GetVersion404JSONResponse Error

func (response GetVersion404JSONResponse) VisitGetVersionResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusNotFound, response)
}

type GetVersion500JSONResponse Error

func (response GetVersion500JSONResponse) VisitGetVersionResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusInternalServerError, response)
}

// GetKernel

type GetKernelRequestObject struct {
	Filename string `json:"filename"`
}

type GetKernelResponseObject interface {
	VisitGetKernelResponse(w http.ResponseWriter) error
}

type GetKernel200ResponseHeaders struct {
	XChecksum string
}

type GetKernel200ApplicationoctetStreamResponse struct {
	Body          io.Reader
	Headers       GetKernel200ResponseHeaders
	ContentLength int64
}

func (response GetKernel200ApplicationoctetStreamResponse) VisitGetKernelResponse(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/octet-stream")
	if response.ContentLength != 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(response.ContentLength, 10))
	}
	w.Header().Set(ChecksumHeader, response.Headers.XChecksum)
	w.WriteHeader(http.StatusOK)

	if closer, ok := response.Body.(io.Closer); ok {
		defer closer.Close()
	}
	_, err := io.Copy(w, response.Body)
	return err
}

type GetKernel404JSONResponse Error

func (response GetKernel404JSONResponse) VisitGetKernelResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusNotFound, response)
}

type GetKernel500JSONResponse Error

func (response GetKernel500JSONResponse) VisitGetKernelResponse(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusInternalServerError, response)
}

// StrictServerInterface represents all server handlers.
type StrictServerInterface interface {
	// Liveness check
	// (GET /health)
	GetHealth(ctx context.Context, request GetHealthRequestObject) (GetHealthResponseObject, error)
	// Most recently published kernel
	// (GET /version)
	GetVersion(ctx context.Context, request GetVersionRequestObject) (GetVersionResponseObject, error)
	// Download a kernel image
	// (GET /kernels/{filename})
	GetKernel(ctx context.Context, request GetKernelRequestObject) (GetKernelResponseObject, error)
}

// ServerInterface is the plain http.HandlerFunc form of the API.
type ServerInterface interface {
	GetHealth(w http.ResponseWriter, r *http.Request)
	GetVersion(w http.ResponseWriter, r *http.Request)
	GetKernel(w http.ResponseWriter, r *http.Request, filename string)
}

type StrictHandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (response interface{}, err error)

type StrictMiddlewareFunc func(f StrictHandlerFunc, operationID string) StrictHandlerFunc

type StrictHTTPServerOptions struct {
	RequestErrorHandlerFunc  func(w http.ResponseWriter, r *http.Request, err error)
	ResponseErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// NewStrictHandler adapts a StrictServerInterface to a ServerInterface.
func NewStrictHandler(ssi StrictServerInterface, middlewares []StrictMiddlewareFunc) ServerInterface {
	return NewStrictHandlerWithOptions(ssi, middlewares, StrictHTTPServerOptions{
		RequestErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, Error{Error: http.StatusText(http.StatusBadRequest)})
		},
		ResponseErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusInternalServerError, Error{Error: http.StatusText(http.StatusInternalServerError)})
		},
	})
}

func NewStrictHandlerWithOptions(ssi StrictServerInterface, middlewares []StrictMiddlewareFunc, options StrictHTTPServerOptions) ServerInterface {
	return &strictHandler{ssi: ssi, middlewares: middlewares, options: options}
}

type strictHandler struct {
	ssi         StrictServerInterface
	middlewares []StrictMiddlewareFunc
	options     StrictHTTPServerOptions
}

func (sh *strictHandler) wrap(operationID string, handler StrictHandlerFunc) StrictHandlerFunc {
	for _, middleware := range sh.middlewares {
		handler = middleware(handler, operationID)
	}
	return handler
}

// GetHealth operation middleware
func (sh *strictHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	var request GetHealthRequestObject

	handler := sh.wrap("GetHealth", func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
		return sh.ssi.GetHealth(ctx, request.(GetHealthRequestObject))
	})

	response, err := handler(r.Context(), w, r, request)
	if err != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, err)
	} else if validResponse, ok := response.(GetHealthResponseObject); ok {
		if err := validResponse.VisitGetHealthResponse(w); err != nil {
			sh.options.ResponseErrorHandlerFunc(w, r, err)
		}
	} else if response != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, fmt.Errorf("unexpected response type: %T", response))
	}
}

// GetVersion operation middleware
func (sh *strictHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	var request GetVersionRequestObject

	handler := sh.wrap("GetVersion", func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
		return sh.ssi.GetVersion(ctx, request.(GetVersionRequestObject))
	})

	response, err := handler(r.Context(), w, r, request)
	if err != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, err)
	} else if validResponse, ok := response.(GetVersionResponseObject); ok {
		if err := validResponse.VisitGetVersionResponse(w); err != nil {
			sh.options.ResponseErrorHandlerFunc(w, r, err)
		}
	} else if response != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, fmt.Errorf("unexpected response type: %T", response))
	}
}

// GetKernel operation middleware
func (sh *strictHandler) GetKernel(w http.ResponseWriter, r *http.Request, filename string) {
	request := GetKernelRequestObject{Filename: filename}

	handler := sh.wrap("GetKernel", func(ctx context.Context, w http.ResponseWriter, r *http.Request, request interface{}) (interface{}, error) {
		return sh.ssi.GetKernel(ctx, request.(GetKernelRequestObject))
	})

	response, err := handler(r.Context(), w, r, request)
	if err != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, err)
	} else if validResponse, ok := response.(GetKernelResponseObject); ok {
		// Headers are already on the wire once the body starts streaming,
		// so a copy error can only be logged by the caller's middleware.
		validResponse.VisitGetKernelResponse(w)
	} else if response != nil {
		sh.options.ResponseErrorHandlerFunc(w, r, fmt.Errorf("unexpected response type: %T", response))
	}
}

type MiddlewareFunc func(http.Handler) http.Handler

// ChiServerOptions configures Handler construction.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates an http.Handler with routing matching the OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions mounts the API routes on options.BaseRouter (or a new router).
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, Error{Error: http.StatusText(http.StatusBadRequest)})
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/version", wrapper.GetVersion)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/kernels/{filename}", wrapper.GetKernel)
	})

	return r
}

// ServerInterfaceWrapper converts HTTP requests to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		h = middleware(h)
	}
	h.ServeHTTP(w, r)
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetHealth))
}

// GetVersion operation middleware
func (siw *ServerInterfaceWrapper) GetVersion(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetVersion))
}

// GetKernel operation middleware
func (siw *ServerInterfaceWrapper) GetKernel(w http.ResponseWriter, r *http.Request) {
	var filename string

	err := runtime.BindStyledParameterWithOptions("simple", "filename", chi.URLParam(r, "filename"), &filename, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "filename", Err: err})
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetKernel(w, r, filename)
	}))
}

// InvalidParamFormatError reports a path parameter that could not be decoded.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}
