package bridge

// Error wraps a bridge-level failure with a short description of the
// operation that produced it, mirroring the teacher's serial.Error shape.
type Error struct {
	msg string
	err error
}

func (e *Error) Error() string {
	if e.msg != "" {
		if e.err != nil {
			return e.msg + ": " + e.err.Error()
		}
		return e.msg
	}
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *Error) Unwrap() error {
	return e.err
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{msg: msg, err: err}
}
