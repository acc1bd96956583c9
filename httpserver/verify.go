package httpserver

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/privy-io/privy-go/authorization"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
)

var errInsufficientSignatures = errors.New("insufficient authorization signatures")

// canonicalURL reconstructs the URL the client signed.
func (h *Handler) canonicalURL(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return h.cfg.BaseURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// canonicalRequest rebuilds the payload covered by the request's
// authorization signatures.
func (h *Handler) canonicalRequest(r *http.Request, body []byte) ([]byte, error) {
	method, ok := interfaces.ParseHTTPMethod(r.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", authorization.ErrMethodNotSigned, r.Method)
	}

	var signedBody any
	if len(body) > 0 {
		signedBody = json.RawMessage(body)
	}
	return authorization.FormatRequest(r.Header.Get(interfaces.HeaderAppID), method, h.canonicalURL(r), signedBody, r.Header.Get(interfaces.HeaderIdempotencyKey))
}

// authorizeLocked checks that the request carries enough valid signatures to
// satisfy the key quorum ownerID. Every quorum key and every quorum user
// counts at most once. Unowned resources need no signature. Caller holds
// the store lock.
func (h *Handler) authorizeLocked(r *http.Request, body []byte, ownerID string) error {
	if ownerID == "" {
		return nil
	}
	record, ok := h.store.quorums[ownerID]
	if !ok {
		return &RequestError{StatusCode: http.StatusInternalServerError, Err: fmt.Errorf("owner %s is missing", ownerID)}
	}

	signatures, err := authorization.SplitSignatures(r.Header.Get(interfaces.HeaderAuthorizationSignature))
	if err != nil {
		h.metrics.signatureChecks.WithLabelValues("malformed").Inc()
		return &RequestError{StatusCode: http.StatusUnauthorized, Err: err}
	}

	message, err := h.canonicalRequest(r, body)
	if err != nil {
		return &RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}

	users := make([][]*ecdsa.PublicKey, len(record.quorum.UserIDs))
	now := h.clock.Now()
	for i, userID := range record.quorum.UserIDs {
		users[i] = h.store.activeUserKeysLocked(userID, now)
	}

	valid := countValid(signatures, message, record.keys, users)
	threshold := record.quorum.Threshold()
	if valid < threshold {
		h.metrics.signatureChecks.WithLabelValues("rejected").Inc()
		h.log.Warn("authorization rejected", "owner", ownerID, "valid", valid, "threshold", threshold, "signatures", len(signatures))
		return &RequestError{
			StatusCode: http.StatusUnauthorized,
			Err:        fmt.Errorf("%w: %d of %d required", errInsufficientSignatures, valid, threshold),
		}
	}

	h.metrics.signatureChecks.WithLabelValues("accepted").Inc()
	h.log.Debug("authorization accepted", "owner", ownerID, "valid", valid)
	return nil
}

// countValid returns the number of distinct quorum members with a valid
// signature over message. A member is either a key or a user, and a user
// signs with any of their issued keys.
func countValid(signatures [][]byte, message []byte, keys []*ecdsa.PublicKey, users [][]*ecdsa.PublicKey) int {
	keyUsed := make([]bool, len(keys))
	userUsed := make([]bool, len(users))
	valid := 0

	for _, sig := range signatures {
		if i := firstMatch(sig, message, keys, keyUsed); i >= 0 {
			keyUsed[i] = true
			valid++
			continue
		}
		for i, userKeys := range users {
			if userUsed[i] {
				continue
			}
			if firstMatch(sig, message, userKeys, nil) >= 0 {
				userUsed[i] = true
				valid++
				break
			}
		}
	}
	return valid
}

func firstMatch(sig, message []byte, keys []*ecdsa.PublicKey, used []bool) int {
	for i, pub := range keys {
		if used != nil && used[i] {
			continue
		}
		if cryptoutils.VerifySignature(pub, message, sig) {
			return i
		}
	}
	return -1
}
