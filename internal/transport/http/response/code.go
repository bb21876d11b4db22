package response

// code 直接使用 HTTP 状态码
const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeServerError     = 500
	CodeUnavailable     = 503
	CodeTimeout         = 504
)

// CodeMsgMap 用于集中管理 code - msg
var CodeMsgMap = map[int]string{
	CodeOK:              "OK",
	CodeBadRequest:      "Bad Request",
	CodeUnauthorized:    "Unauthorized",
	CodeForbidden:       "Forbidden",
	CodeNotFound:        "Not Found",
	CodeConflict:        "Conflict",
	CodeTooManyRequests: "Too Many Requests",
	CodeServerError:     "internal error",
	CodeUnavailable:     "Service Unavailable",
	CodeTimeout:         "Gateway Timeout",
}

// 稳定的错误标识，客户端按它分支
const (
	ErrUserNotFound       = "UserNotFound"
	ErrInvalidAmount      = "InvalidAmount"
	ErrInternal           = "Internal"
	ErrBadRequest         = "BadRequest"
	ErrUnauthorized       = "Unauthorized"
	ErrForbidden          = "Forbidden"
	ErrEmailTaken         = "EmailTaken"
	ErrInvalidCredentials = "InvalidCredentials"
	ErrTimeout            = "Timeout"
	ErrTooManyRequests    = "TooManyRequests"
	ErrUnavailable        = "Unavailable"
)
