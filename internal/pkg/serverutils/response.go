package serverutils

type Response[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

// AcceptedResponse is used when the request started background work.
func AcceptedResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Code:    202,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) Response[any] {
	return Response[any]{
		Success: false,
		Code:    code,
		Message: message,
	}
}

// HTTPError carries a status code up to ErrorHandlerMiddleware. Data, when set, is
// rendered in the envelope so clients get field level detail.
type HTTPError struct {
	Code    int
	Message string
	Data    any
	Err     error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(code int, err error) *HTTPError {
	return &HTTPError{Code: code, Message: err.Error(), Err: err}
}
