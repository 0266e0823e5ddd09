package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/flowershow/contentsync/internal/common/httpx"
	"github.com/flowershow/contentsync/internal/common/logtrace"
	commonmiddleware "github.com/flowershow/contentsync/internal/common/middleware"
	"github.com/flowershow/contentsync/internal/syncsrv/apis"
	"github.com/flowershow/contentsync/internal/syncsrv/config"
	"github.com/flowershow/contentsync/pkg/api"
)

// ServerVersion is reported by /version. It is overridden at link time.
var ServerVersion = "Flowershow Sync Server: 0.1.0"

type SyncServer struct {
	Router   *chi.Mux
	handlers *apis.Handlers
}

func CreateNewServer(handlers *apis.Handlers) (*SyncServer, error) {
	if handlers == nil {
		return nil, fmt.Errorf("handlers cannot be nil")
	}
	s := &SyncServer{handlers: handlers}
	s.Router = chi.NewRouter()
	return s, nil
}

func (s *SyncServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(s.corsHandler())
	}
	s.Router.Get("/version", s.getVersion)
	s.Router.Mount("/", s.handlers.Router())
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in sync router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			fmt.Printf("Logging err: %s\n", err.Error())
		}
	}
}

func (s *SyncServer) corsHandler() func(http.Handler) http.Handler {
	origins := config.Config().CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
		ExposedHeaders: []string{"Location", commonmiddleware.RequestIdHeader},
		MaxAge:         300,
	})
}

func (s *SyncServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &api.GetVersionRsp{
		ServerVersion: ServerVersion,
		ApiVersion:    api.ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}
