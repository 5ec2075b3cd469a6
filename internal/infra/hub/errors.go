package hub

import (
	"fmt"

	"media-transcoder/internal/domain"
)

var errPanicSend = fmt.Errorf("%w: subscriber panicked during send", domain.ErrDelivery)
