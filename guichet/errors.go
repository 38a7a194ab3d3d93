// Package guichet orchestrates the fill workflow: a template is uploaded,
// its placeholders are collected through a question/answer exchange, and the
// completed document is generated and archived.
package guichet

import "errors"

// ErrInvalidUpload is returned when the uploaded file is not a .docx
// package by extension or content type.
var ErrInvalidUpload = errors.New("guichet: upload must be a .docx document")

// ErrUnknownSession is returned when a session ID does not resolve, either
// because it never existed or because it expired.
var ErrUnknownSession = errors.New("guichet: unknown or expired session")

// ErrNotReady is returned by Generate while unfilled placeholders remain.
var ErrNotReady = errors.New("guichet: placeholders still unfilled")
