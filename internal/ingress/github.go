// Package ingress turns signed GitHub webhook deliveries into verified
// abstract pull-request events.
package ingress

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"

	eventModel "github.com/festy23/contribution_engine/internal/event/model"
	"github.com/festy23/contribution_engine/pkg/clock"
)

// Source identifies events that came through the GitHub webhook.
const Source = "github"

const pullRequestEvent = "pull_request"

var (
	// ErrInvalidSignature is returned when the delivery signature does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrIgnored is returned for deliveries that carry nothing to score.
	ErrIgnored = errors.New("webhook event ignored")
)

var actionKinds = map[string]eventModel.Kind{
	"synchronize":      eventModel.KindSynchronized,
	"review_requested": eventModel.KindReviewRequested,
	"reopened":         eventModel.KindReopened,
}

// Verifier checks webhook signatures with a shared secret.
type Verifier struct {
	secret []byte
	clock  clock.Clock
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret string, clk clock.Clock) *Verifier {
	return &Verifier{secret: []byte(secret), clock: clk}
}

// Verify validates the X-Hub-Signature-256 header and maps the delivery.
// A delivery that verifies but cannot be parsed still yields an event so
// admission can reject and count it.
func (v *Verifier) Verify(r *http.Request) (*eventModel.InboundEvent, error) {
	payload, err := github.ValidatePayload(r, v.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Map(github.WebHookType(r), github.DeliveryID(r), payload, v.clock.Now())
}

// Map converts a raw delivery into an abstract event.
func Map(eventType, deliveryID string, payload []byte, receivedAt time.Time) (*eventModel.InboundEvent, error) {
	if eventType != pullRequestEvent {
		return nil, fmt.Errorf("%w: %q deliveries are not scored", ErrIgnored, eventType)
	}

	digest := Digest(payload)
	parsed, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return &eventModel.InboundEvent{
			Source:        Source,
			PayloadDigest: digest,
			DeliveryID:    deliveryID,
			OccurredAt:    receivedAt,
		}, nil
	}
	pe, ok := parsed.(*github.PullRequestEvent)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload %T", ErrIgnored, parsed)
	}

	pr := pe.GetPullRequest()
	kind, at := kindOf(pe.GetAction(), pr)
	if kind == "" {
		return nil, fmt.Errorf("%w: action %q", ErrIgnored, pe.GetAction())
	}
	if at.IsZero() {
		at = receivedAt
	}

	return FromPullRequest(pe.GetRepo().GetFullName(), pr, kind, at, digest, deliveryID), nil
}

// FromPullRequest builds the abstract event for pr. The pull request author
// is the actor, whoever triggered the delivery.
func FromPullRequest(
	repoFullName string,
	pr *github.PullRequest,
	kind eventModel.Kind,
	at time.Time,
	digest, deliveryID string,
) *eventModel.InboundEvent {
	return &eventModel.InboundEvent{
		Kind:          kind,
		Source:        Source,
		RepositoryID:  repoFullName,
		PRExternalID:  PullRequestID(repoFullName, pr.GetNumber()),
		Actor:         pr.GetUser().GetLogin(),
		DiffSize:      pr.GetAdditions() + pr.GetDeletions(),
		HeadRef:       pr.GetHead().GetSHA(),
		OccurredAt:    at.UTC(),
		PayloadDigest: digest,
		DeliveryID:    deliveryID,
	}
}

// kindOf picks the event kind and the time it happened at. A closed action
// on a merged pull request is a merge.
func kindOf(action string, pr *github.PullRequest) (eventModel.Kind, time.Time) {
	switch action {
	case "closed":
		if pr.GetMerged() {
			return eventModel.KindMerged, pr.GetMergedAt().Time
		}
		return eventModel.KindClosed, pr.GetClosedAt().Time
	case "opened":
		return eventModel.KindOpened, pr.GetCreatedAt().Time
	}
	if kind, ok := actionKinds[action]; ok {
		return kind, pr.GetUpdatedAt().Time
	}
	return "", time.Time{}
}

// PullRequestID is the external id of a pull request: "owner/name#number".
func PullRequestID(repoFullName string, number int) string {
	if repoFullName == "" || number <= 0 {
		return ""
	}
	return fmt.Sprintf("%s#%d", repoFullName, number)
}

// SplitPullRequestID reverses PullRequestID.
func SplitPullRequestID(id string) (owner, name string, number int, ok bool) {
	hash := strings.LastIndex(id, "#")
	if hash <= 0 {
		return "", "", 0, false
	}
	owner, name, found := strings.Cut(id[:hash], "/")
	if !found || owner == "" || name == "" {
		return "", "", 0, false
	}
	number, err := strconv.Atoi(id[hash+1:])
	if err != nil || number <= 0 {
		return "", "", 0, false
	}
	return owner, name, number, true
}

// Digest is the SHA-256 hex of a raw payload.
func Digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
