package upload

// CodeError is a rejected upload, reported to the client as {"error": Code}.
type CodeError struct {
	Code string
}

func (e *CodeError) Error() string { return e.Code }

var (
	ErrMissingFile    = &CodeError{Code: "file.missing"}
	ErrTypeNotAllowed = &CodeError{Code: "file.type"}
	ErrInvalidPicture = &CodeError{Code: "file.picture.invalid"}
	ErrSizeExceeded   = &CodeError{Code: "file.size"}
)
