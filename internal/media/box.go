package media

import (
	"strconv"
	"strings"
)

// Box is a target bounding box requested by the uploader.
type Box struct {
	Width  int
	Height int
}

// ParseBox parses raw width/height form values. Both must be present for a box to exist;
// a nil box with a nil error means no resize was requested.
// Values that are not positive integers return ErrInvalidBox unless bestEffort is set,
// in which case they are ignored as if no box had been sent.
func ParseBox(width, height string, bestEffort bool) (*Box, error) {
	width, height = strings.TrimSpace(width), strings.TrimSpace(height)
	if width == "" || height == "" {
		return nil, nil
	}
	w, errW := strconv.Atoi(width)
	h, errH := strconv.Atoi(height)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		if bestEffort {
			return nil, nil
		}
		return nil, ErrInvalidBox
	}
	return &Box{Width: w, Height: h}, nil
}
