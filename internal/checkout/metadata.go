package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/enums"
	pkgerrors "github.com/sobacalgary/backoffice/pkg/errors"
)

// Session metadata keys. The id key varies per record type so downstream
// consumers reading raw sessions see a self-describing name.
const (
	metadataTypeKey      = "type"
	memberIDKey          = "memberId"
	donationIDKey        = "donationId"
	orderIDKey           = "orderId"
	sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
)

func idKeyFor(recordType enums.RecordType) string {
	switch recordType {
	case enums.RecordTypeMembership:
		return memberIDKey
	case enums.RecordTypeDonation:
		return donationIDKey
	case enums.RecordTypeOrder:
		return orderIDKey
	default:
		return ""
	}
}

// BuildMetadata stamps a session with the pending record it belongs to.
func BuildMetadata(recordType enums.RecordType, recordID uuid.UUID) map[string]string {
	key := idKeyFor(recordType)
	if key == "" {
		return nil
	}
	return map[string]string{
		metadataTypeKey: string(recordType),
		key:             recordID.String(),
	}
}

// RecordRef identifies the pending record a session was opened for.
type RecordRef struct {
	Type enums.RecordType
	ID   uuid.UUID
}

// ParseMetadata recovers the record reference from session metadata.
func ParseMetadata(metadata map[string]string) (RecordRef, error) {
	var ref RecordRef
	if len(metadata) == 0 {
		return ref, pkgerrors.New(pkgerrors.CodeValidation, "session metadata missing")
	}

	rawType, ok := metadata[metadataTypeKey]
	if !ok {
		return ref, pkgerrors.New(pkgerrors.CodeValidation, "session metadata missing type")
	}
	recordType, err := enums.ParseRecordType(rawType)
	if err != nil {
		return ref, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session metadata type")
	}

	rawID, ok := metadata[idKeyFor(recordType)]
	if !ok {
		return ref, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("session metadata missing %s", idKeyFor(recordType)))
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return ref, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session metadata record id")
	}

	ref.Type = recordType
	ref.ID = id
	return ref, nil
}

// SuccessURL appends the provider's session-id placeholder so the frontend
// can read the session back after redirect.
func SuccessURL(baseURL, path string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if strings.Contains(u, "?") {
		return u + "&session_id=" + sessionIDPlaceholder
	}
	return u + "?session_id=" + sessionIDPlaceholder
}

// CancelURL joins the frontend base with the cancel path.
func CancelURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// ValidateBaseURL rejects obviously broken frontend bases at startup.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q must be http(s)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q missing host", raw)
	}
	return nil
}
