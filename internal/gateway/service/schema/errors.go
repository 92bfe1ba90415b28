package schema

import "errors"

var ErrInvalidArgument = errors.New("invalid argument")
