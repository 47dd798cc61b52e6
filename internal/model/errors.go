package model

import (
	"errors"
)

var (
	ErrTooBig        = errors.New("file too big")
	ErrNoMatch       = errors.New("no match")
	ErrUnreadable    = errors.New("file not readable")
	ErrNoAssociation = errors.New("no association")
	ErrLaunch        = errors.New("launch failed")
)

// MimeOctetStream is the answer for data no detector could classify.
const MimeOctetStream = "application/octet-stream"
