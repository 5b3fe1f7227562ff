package backend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/August26/proxytest-go/internal/model"
)

// Classify maps a transport error to an ErrorKind.
func Classify(err error) model.ErrorKind {
	var (
		dnsErr     *net.DNSError
		netErr     net.Error
		recordErr  tls.RecordHeaderError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return model.ErrTimeout
	case errors.As(err, &dnsErr):
		return model.ErrDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return model.ErrConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return model.ErrTimeout
	case errors.As(err, &recordErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr),
		strings.Contains(err.Error(), "malformed HTTP"):
		return model.ErrProtocol
	}
	return model.ErrOther
}

func failure(err error) model.FetchResult {
	return model.FetchResult{Err: &model.FetchError{Kind: Classify(err), Message: err.Error()}}
}

// statusFailure mirrors the usual "raise for status" wording.
func statusFailure(resp *http.Response) model.FetchResult {
	reason := http.StatusText(resp.StatusCode)
	var msg string
	switch {
	case resp.StatusCode < 500:
		msg = fmt.Sprintf("%d Client Error: %s", resp.StatusCode, reason)
	default:
		msg = fmt.Sprintf("%d Server Error: %s", resp.StatusCode, reason)
	}
	res := model.Failed(model.ErrProtocol, "%s", msg)
	res.StatusCode = resp.StatusCode
	return res
}
