package main

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the viewer core
var (
	ErrInvalidContainer = errors.New("not a valid archive")
	ErrEmptyArchive     = errors.New("no images found in archive")
	ErrUnreadableEntry  = errors.New("archive entry unreadable")
	ErrCorruptImage     = errors.New("corrupt image")
	ErrProgressWrite    = errors.New("progress write failed")
	ErrNoArchive        = errors.New("no archive loaded")
)

// LoadError reports why an archive could not become the current session.
// The previous session, if any, is left untouched.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PageError is a failure local to one page. It never affects other pages.
type PageError struct {
	Index int
	Name  string
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Index+1, e.Name, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}
