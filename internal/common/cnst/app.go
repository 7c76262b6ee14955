package cnst

const (
	// AppName is used as the logger root name and metrics namespace.
	AppName = "relay"

	// DefaultBusChannel is the shared pub/sub channel every instance
	// publishes to and subscribes on.
	DefaultBusChannel = "wss"

	// DefaultTokenCookie is the cookie carrying the signed token on the
	// websocket handshake request.
	DefaultTokenCookie = "jwt"

	// DefaultAllowedOrigin is the single origin accepted on handshake when
	// none is configured.
	DefaultAllowedOrigin = "https://localhost:3000"
)
