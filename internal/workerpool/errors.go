package workerpool

import "errors"

var ErrTerminated = errors.New("worker pool terminated")
