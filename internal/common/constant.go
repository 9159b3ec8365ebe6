package common

const (
	// RefreshTokenHeaderName carries a refresh token on POST /token.
	RefreshTokenHeaderName = "refresh-token"

	// RefreshTokenCookieName is the HTTP-only cookie holding the refresh token.
	RefreshTokenCookieName = "refreshToken"

	// AuthorizationHeaderName carries "Bearer <access token>".
	AuthorizationHeaderName = "Authorization"
)
