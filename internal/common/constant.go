package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// SessionIDHeaderName carries the session record id returned by Login so the
// server can touch the session on login-adjacent calls.
const SessionIDHeaderName = "session_id"

// UserAgentHeaderName is the metadata key gRPC uses for the client user agent.
const UserAgentHeaderName = "user-agent"

// ForwardedForHeaderName carries the original client address when the
// server sits behind a proxy.
const ForwardedForHeaderName = "x-forwarded-for"
