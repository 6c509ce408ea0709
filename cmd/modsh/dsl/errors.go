package dsl

import "errors"

var (
	ErrIO               = errors.New("io error")
	ErrSyntax           = errors.New("syntax error")
	ErrSchema           = errors.New("schema error")
	ErrModuleNotFound   = errors.New("module not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrVariableNotFound = errors.New("variable not found")
	ErrCircularModule   = errors.New("circular module dependency")
	ErrCircularTask     = errors.New("circular task dependency")
	ErrCircularVariable = errors.New("circular variable dependency")
)
