package ws

import (
	"errors"

	"go.uber.org/zap"

	"github.com/relaychat/relay/internal/auth/jwt"
	"github.com/relaychat/relay/pkg/utils"
)

var (
	// ErrInsecureTransport rejects handshakes on unencrypted transports.
	ErrInsecureTransport = errors.New("handshake: transport is not encrypted")
	// ErrOriginMismatch rejects handshakes from any origin other than the
	// single configured one.
	ErrOriginMismatch = errors.New("handshake: origin not allowed")
	// ErrMissingToken rejects handshakes carrying no token cookie.
	ErrMissingToken = errors.New("handshake: token cookie missing")
)

// Validator gatekeeps new connection attempts. Rejection reasons are for
// logging only and are never disclosed to the peer beyond closing the
// attempt.
type Validator struct {
	logger        *zap.Logger
	tokens        *jwt.Service
	allowedOrigin string
	cookieName    string
}

// NewValidator creates a handshake validator for the single allowed origin
// and token cookie name.
func NewValidator(logger *zap.Logger, tokens *jwt.Service, allowedOrigin, cookieName string) *Validator {
	return &Validator{
		logger:        logger.Named("ws.handshake"),
		tokens:        tokens,
		allowedOrigin: allowedOrigin,
		cookieName:    cookieName,
	}
}

// Validate runs the handshake checks in order, short-circuiting on the first
// failure: encrypted transport, exact origin match, then token verification
// with expiry enforcement. On success the returned claims carry the user
// identity that owns the connection for the rest of its lifetime; the token
// is not re-verified per message.
func (v *Validator) Validate(secure bool, origin, cookieHeader string) (*jwt.Claims, error) {
	if !secure {
		v.logger.Debug("rejecting plaintext connection attempt")
		return nil, ErrInsecureTransport
	}

	if origin != v.allowedOrigin {
		v.logger.Debug("rejecting origin",
			zap.String("origin", origin),
			zap.String("allowed", v.allowedOrigin))
		return nil, ErrOriginMismatch
	}

	token, ok := utils.ParseCookieHeader(cookieHeader)[v.cookieName]
	if !ok {
		v.logger.Debug("rejecting connection without token cookie",
			zap.String("cookie", v.cookieName))
		return nil, ErrMissingToken
	}

	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		v.logger.Debug("rejecting invalid token", zap.Error(err))
		return nil, err
	}

	return claims, nil
}
