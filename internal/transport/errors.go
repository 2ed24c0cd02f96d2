package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"

	"github.com/y0f/checkin/internal/safenet"
)

// Kind classifies why an attempt produced no HTTP response.
type Kind string

const (
	KindTimeout  Kind = "timeout"
	KindTLS      Kind = "tls"
	KindRedirect Kind = "redirect"
	KindNetwork  Kind = "network"
	KindBlocked  Kind = "blocked"
	KindCanceled Kind = "canceled"
	KindRequest  Kind = "request"
)

// TransportError is carried in a Snapshot when the request did not complete.
type TransportError struct {
	Kind Kind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func classify(err error) *TransportError {
	return &TransportError{Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	var (
		redirect  *redirectError
		unknownCA x509.UnknownAuthorityError
		hostname  x509.HostnameError
		invalid   x509.CertificateInvalidError
		verify    *tls.CertificateVerificationError
		record    tls.RecordHeaderError
		alert     tls.AlertError
		netErr    net.Error
	)

	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &redirect):
		return KindRedirect
	case errors.Is(err, safenet.ErrBlocked):
		return KindBlocked
	case errors.As(err, &verify), errors.As(err, &unknownCA), errors.As(err, &hostname),
		errors.As(err, &invalid), errors.As(err, &record), errors.As(err, &alert):
		return KindTLS
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	default:
		return KindNetwork
	}
}
