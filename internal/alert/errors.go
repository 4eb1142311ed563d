package alert

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/polyinsider/hunter/internal/store"
)

// revokedMarkers are provider descriptions meaning the recipient can no
// longer receive messages from us.
var revokedMarkers = []string{
	"forbidden",
	"bot was blocked",
	"bot was kicked",
	"user is deactivated",
	"chat not found",
}

// DeliveryError is a structured failure reported by the messaging provider.
type DeliveryError struct {
	StatusCode  int
	Description string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%d): %s", e.StatusCode, e.Description)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Revoked reports whether the recipient revoked or lost delivery consent.
func (e *DeliveryError) Revoked() bool {
	if e.StatusCode == http.StatusForbidden {
		return true
	}
	desc := strings.ToLower(e.Description)
	for _, marker := range revokedMarkers {
		if strings.Contains(desc, marker) {
			return true
		}
	}
	return false
}

// Classify maps a send error to a delivery result.
func Classify(err error) store.DeliveryResult {
	if err == nil {
		return store.Delivered
	}
	var de *DeliveryError
	if errors.As(err, &de) && de.Revoked() {
		return store.PermanentFailure
	}
	return store.TransientFailure
}
