package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
	ErrSourceUnavailable = errors.New("document source unavailable")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrEmptyQuestion     = errors.New("question is required")
	ErrInvalidUpload     = errors.New("invalid upload")

	ErrQuotaExhausted = errors.New("provider quota exhausted")
	ErrRateLimited    = errors.New("provider rate limited")
	ErrTransient      = errors.New("transient provider error")
	ErrPermanent      = errors.New("permanent provider error")
	ErrContextTooLong = errors.New("context too long")
)
