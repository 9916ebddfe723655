package audio

import "errors"

var (
	ErrCodecUnavailable = errors.New("opus codec not built in (build with -tags opus)")
	ErrCodecClosed      = errors.New("codec closed")
)
