package worldstore

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/worldstore/internal/authz"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
)

// registerRoutes mounts the storage API. Every route is verified as a signed
// fetch, rate limited, then authorized with its own policy before the handler
// touches a store.
func (s *Service) registerRoutes() {
	router := s.Router()

	var api *mux.Router
	if s.prefix == "" {
		api = router.NewRoute().Subrouter()
	} else {
		api = router.PathPrefix(s.prefix).Subrouter()
	}

	api.Use(signedfetch.Middleware(s.verifier, s.Logger()))
	if s.limiter != nil {
		api.Use(s.limiter.Handler)
	}

	open := s.gate.Middleware(authz.OwnerDeployerOrAuthorized)
	restricted := s.gate.Middleware(authz.OwnerOrDeployer)

	handle := func(path string, policy func(http.Handler) http.Handler, fn http.HandlerFunc, methods ...string) {
		api.Handle(path, policy(fn)).Methods(methods...)
	}

	// World values
	handle("/usage", open, s.handleWorldUsage, http.MethodGet)
	handle("/values", open, s.handleListWorldValues, http.MethodGet)
	handle("/values", open, s.handleDeleteAllWorldValues, http.MethodDelete)
	handle("/values/{key}", open, s.handleGetWorldValue, http.MethodGet)
	handle("/values/{key}", open, s.handleSetWorldValue, http.MethodPut)
	handle("/values/{key}", open, s.handleDeleteWorldValue, http.MethodDelete)

	// Player values
	handle("/players", open, s.handleListPlayers, http.MethodGet)
	handle("/players", open, s.handleDeleteAllPlayers, http.MethodDelete)
	handle("/players/{address}/usage", open, s.handlePlayerUsage, http.MethodGet)
	handle("/players/{address}/values", open, s.handleListPlayerValues, http.MethodGet)
	handle("/players/{address}/values", open, s.handleDeleteAllPlayerValues, http.MethodDelete)
	handle("/players/{address}/values/{key}", open, s.handleGetPlayerValue, http.MethodGet)
	handle("/players/{address}/values/{key}", open, s.handleSetPlayerValue, http.MethodPut)
	handle("/players/{address}/values/{key}", open, s.handleDeletePlayerValue, http.MethodDelete)

	// Env secrets. The authoritative server may read single keys at runtime;
	// everything else is limited to the owner and deployers.
	handle("/env/usage", restricted, s.handleEnvUsage, http.MethodGet)
	handle("/env", restricted, s.handleListEnv, http.MethodGet)
	handle("/env", restricted, s.handleDeleteAllEnv, http.MethodDelete)
	handle("/env/{key}", open, s.handleGetEnv, http.MethodGet)
	handle("/env/{key}", restricted, s.handleSetEnv, http.MethodPut)
	handle("/env/{key}", restricted, s.handleDeleteEnv, http.MethodDelete)
}
