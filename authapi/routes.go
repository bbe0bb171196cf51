package authapi

// Route path constants shared by the identity service and the HTTP client
const (
	// Auth Routes
	RouteSignup = "/auth/signup"
	RouteLogin  = "/auth/login"
	RouteLogout = "/auth/logout"

	// Member Routes (bearer token required)
	RouteMe             = "/member/me"
	RouteChangeNickname = "/member/nickname"
	RouteChangePassword = "/member/password"

	RouteHealth = "/health"

	// HeaderRequestID correlates client and server logs.
	HeaderRequestID = "X-Request-ID"
)
