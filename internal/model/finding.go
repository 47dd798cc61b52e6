package model

// Finding is the outcome of classifying one file during a scan.
type Finding struct {
	Path    string // absolute path of the file
	Mime    string // resolved mime type
	Command string // command template, empty if no association exists
	Err     error  // ErrNoAssociation, ErrUnreadable or ErrTooBig wrapped
}
