package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Коды транспортных ошибок.
const (
	CodeTimeout     = "timeout"
	CodeConnRefused = "connection_refused"
	CodeConnReset   = "connection_reset"
	CodeDNS         = "dns_failure"
	CodeNetwork     = "network_error"
	CodeHTTP        = "http_error"
)

// TransportError — ошибка транспортного уровня после исчерпания
// всех повторов.
type TransportError struct {
	// URL — адрес последней попытки.
	URL string

	// Status — HTTP статус последнего ответа (0 — ответа не было).
	Status int

	// Code — классификация ошибки.
	Code string

	// Attempts — сколько попыток было сделано.
	Attempts int

	// Err — исходная ошибка (nil для статусных ошибок).
	Err error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("request to %s failed with status %d after %d attempts", e.URL, e.Status, e.Attempts)
	}
	return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// transientStatuses — статусы, после которых запрос повторяется.
var transientStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsTransientStatus сообщает, считается ли статус временным сбоем.
func IsTransientStatus(status int) bool {
	return transientStatuses[status]
}

// classify определяет код ошибки соединения. Ошибки отмены контекста
// не классифицируются как транспортные.
func classify(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeDNS
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnReset
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CodeNetwork
	}

	return ""
}

// isRetryable сообщает, стоит ли повторять запрос после ошибки
// соединения.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return classify(err) != ""
}
