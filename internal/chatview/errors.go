package chatview

import "errors"

// ErrSendFailed is returned when the backend rejected a send without a
// transport error. The draft is preserved so the send can be retried.
var ErrSendFailed = errors.New("send failed")
