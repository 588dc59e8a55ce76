package session

import "errors"

var errNoCapturer = errors.New("session: no capturer configured")
