package errs

// Error codes returned on the synchronous read/write path. Dependency
// failures during fan-out never reach a caller; the code exists for logs
// and metrics labels only.
const (
	ServerInternalError = 500

	RecordNotFoundError = 1101
	ForbiddenError      = 1102
	ConflictError       = 1103
	ValidationError     = 1104
	DependencyError     = 1105

	TokenInvalidError = 1201
	TokenExpiredError = 1202
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "server internal error")

	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")
	ErrForbidden      = NewCodeError(ForbiddenError, "no permission")
	ErrConflict       = NewCodeError(ConflictError, "conflict")
	ErrValidation     = NewCodeError(ValidationError, "invalid argument")
	ErrDependency     = NewCodeError(DependencyError, "dependency failure")

	ErrTokenInvalid = NewCodeError(TokenInvalidError, "token invalid")
	ErrTokenExpired = NewCodeError(TokenExpiredError, "token expired")
)
