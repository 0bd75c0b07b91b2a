package common

// SessionTokenHeaderName is the gRPC metadata key carrying the signed
// session token on player requests.
const SessionTokenHeaderName = "session_token"
