package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "filestore context key " + string(c)
}

// RequestIDKey is the key for the request correlation ID in context.Context
const RequestIDKey = contextKey("requestID")

// UserIDKey is the key for UserID in context.Context
const UserIDKey = contextKey("userID")

// UserEmailKey is the key for UserEmail in context.Context
const UserEmailKey = contextKey("userEmail")

// ComponentKey is the key for the originating component in context.Context
const ComponentKey = contextKey("component")

// OperationKey is the key for the current operation name in context.Context
const OperationKey = contextKey("operation")
