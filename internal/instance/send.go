package instance

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	apperrors "github.com/dalecompra/whatsapp-api-manager/internal/errors"
	"github.com/dalecompra/whatsapp-api-manager/internal/metrics"
)

// addressSuffix is the transport's canonical recipient domain.
const addressSuffix = "@c.us"

// minPhoneDigits is the minimum digit count for a deliverable number.
const minPhoneDigits = 10

// Send validates and delivers one outbound message through the instance's
// automation client. Errors are structured for direct HTTP mapping. A
// failed send never changes the instance's status.
func (r *Registry) Send(ctx context.Context, id, rawNumber, message string) (domain.MessageReceipt, error) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return domain.MessageReceipt{}, apperrors.NotFoundError("Instance not found").
			WithCause(domain.ErrInstanceNotFound).
			WithField("instance_id", id)
	}
	status := rec.status
	client := rec.client
	r.mu.Unlock()

	if status != domain.StatusReady {
		return domain.MessageReceipt{}, apperrors.NotReadyError("Instance is not ready").
			WithCause(domain.ErrNotReady).
			WithField("instance_id", id).
			WithField("current_status", string(status))
	}

	if rawNumber == "" || message == "" {
		return domain.MessageReceipt{}, apperrors.InvalidArgumentError("Number and message are required")
	}

	address, err := FormatAddress(rawNumber)
	if err != nil {
		return domain.MessageReceipt{}, err
	}

	start := r.clock.Now()
	messageID, sendErr := client.Send(ctx, address, message)
	metrics.SendDuration.Observe(r.clock.Since(start).Seconds())
	if sendErr != nil {
		metrics.MessagesSentTotal.WithLabelValues("error").Inc()
		return domain.MessageReceipt{}, apperrors.SendFailedError("Failed to send message", sendErr).
			WithField("instance_id", id)
	}

	// Some transports do not return a stable id for every message kind.
	if messageID == "" {
		messageID = uuid.NewString()
	}

	metrics.MessagesSentTotal.WithLabelValues("success").Inc()
	return domain.MessageReceipt{
		ID:        messageID,
		Timestamp: r.clock.Now().UTC(),
	}, nil
}

// FormatAddress normalizes a raw phone number into a transport recipient
// address: every non-digit is stripped, at least ten digits must remain,
// and the canonical suffix is appended unless already present. The
// function is idempotent over its own output.
func FormatAddress(rawNumber string) (string, error) {
	if strings.HasSuffix(rawNumber, addressSuffix) {
		rawNumber = strings.TrimSuffix(rawNumber, addressSuffix)
	}

	var digits strings.Builder
	for _, c := range rawNumber {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() < minPhoneDigits {
		return "", apperrors.InvalidPhoneError("Invalid phone number format").
			WithField("digits", digits.Len())
	}

	return digits.String() + addressSuffix, nil
}
