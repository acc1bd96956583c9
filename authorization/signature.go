package authorization

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerateSignature canonicalizes req and signs it with every key of
// authCtx. The result is the value of the privy-authorization-signature
// header: base64 DER signatures joined by commas, in push order. A nil or
// empty context yields an empty string, in which case the header is omitted.
func GenerateSignature(ctx context.Context, authCtx *AuthorizationContext, req *CanonicalRequest) (string, error) {
	canonical, err := req.Canonicalize()
	if err != nil {
		return "", err
	}
	return SignCanonical(ctx, authCtx, canonical)
}

// SignCanonical signs an already canonicalized request.
func SignCanonical(ctx context.Context, authCtx *AuthorizationContext, canonical []byte) (string, error) {
	if authCtx.Len() == 0 {
		return "", nil
	}

	signatures, err := authCtx.Sign(ctx, canonical)
	if err != nil {
		return "", err
	}

	encoded := make([]string, len(signatures))
	for i, sig := range signatures {
		encoded[i] = base64.StdEncoding.EncodeToString(sig)
	}
	return strings.Join(encoded, ","), nil
}

// SplitSignatures splits a header value back into DER signatures.
func SplitSignatures(header string) ([][]byte, error) {
	if header == "" {
		return nil, nil
	}

	parts := strings.Split(header, ",")
	signatures := make([][]byte, 0, len(parts))
	for _, part := range parts {
		sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: bad signature encoding: %w", ErrInvalidFormat, err)
		}
		signatures = append(signatures, sig)
	}
	return signatures, nil
}
