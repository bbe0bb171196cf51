package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-session/authapi"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+authapi.RouteHealth, s.HealthHandler())

	// Public API routes
	s.RegisterRouteHandler("POST "+authapi.RouteSignup, ChainMiddleware(s.SignupHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+authapi.RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))

	// Protected API routes (require a valid bearer token)
	s.RegisterRouteHandler("POST "+authapi.RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+authapi.RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+authapi.RouteChangeNickname, ChainMiddleware(s.ChangeNicknameHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+authapi.RouteChangePassword, ChainMiddleware(s.ChangePasswordHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))
}
