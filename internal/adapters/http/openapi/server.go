package openapi

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"
)

// Error is the body of every non-2xx JSON response.
type Error struct {
	Error string `json:"error"`
}

type UploadedArchive struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type StartSessionRequest struct {
	SessionId string `json:"session_id,omitempty"`
}

// ServerInterface has one method per operation in openapi.yaml.
type ServerInterface interface {
	// (POST /v1/uploads)
	UploadArchive(w http.ResponseWriter, r *http.Request)
	// (DELETE /v1/uploads/{key})
	DiscardArchive(w http.ResponseWriter, r *http.Request, key string)
	// (POST /v1/sessions)
	StartSession(w http.ResponseWriter, r *http.Request)
	// (GET /v1/sessions/{id})
	GetSession(w http.ResponseWriter, r *http.Request, id string)
	// (POST /v1/sessions/{id}/responses)
	RespondToSession(w http.ResponseWriter, r *http.Request, id string)
}

type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper binds path parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) UploadArchive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.UploadArchive)
}

func (siw *ServerInterfaceWrapper) DiscardArchive(w http.ResponseWriter, r *http.Request) {
	key, ok := siw.pathParam(w, r, "key")
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DiscardArchive(w, r, key)
	})
}

func (siw *ServerInterfaceWrapper) StartSession(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.StartSession)
}

func (siw *ServerInterfaceWrapper) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathParam(w, r, "id")
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetSession(w, r, id)
	})
}

func (siw *ServerInterfaceWrapper) RespondToSession(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.pathParam(w, r, "id")
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.RespondToSession(w, r, id)
	})
}

func (siw *ServerInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, r.PathValue(name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return "", false
	}
	return value, true
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	var handler http.Handler = fn
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

type StdHTTPServerOptions struct {
	BaseURL          string
	BaseRouter       *http.ServeMux
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions registers every operation on the base router.
func HandlerWithOptions(si ServerInterface, options StdHTTPServerOptions) http.Handler {
	m := options.BaseRouter
	if m == nil {
		m = http.NewServeMux()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	m.HandleFunc("POST "+options.BaseURL+"/v1/uploads", wrapper.UploadArchive)
	m.HandleFunc("DELETE "+options.BaseURL+"/v1/uploads/{key}", wrapper.DiscardArchive)
	m.HandleFunc("POST "+options.BaseURL+"/v1/sessions", wrapper.StartSession)
	m.HandleFunc("GET "+options.BaseURL+"/v1/sessions/{id}", wrapper.GetSession)
	m.HandleFunc("POST "+options.BaseURL+"/v1/sessions/{id}/responses", wrapper.RespondToSession)
	return m
}
