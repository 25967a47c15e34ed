package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/repository"
)

// generateJoinCode produces an 8-character code from an alphabet with no
// ambiguous 0/O/1/I/L. Uniqueness is checked against live groups with a few
// retries; after that a timestamp suffix guarantees the code is fresh.
func generateJoinCode(ctx context.Context, groupRepo repository.GroupRepository) (string, error) {
	for attempt := 0; attempt < JoinCodeRetries; attempt++ {
		code, err := randomJoinCode(JoinCodeLength)
		if err != nil {
			return "", apperrors.InternalError(err)
		}
		exists, err := groupRepo.JoinCodeExists(ctx, code)
		if err != nil {
			return "", apperrors.DatabaseError("checking join code", err)
		}
		if !exists {
			return code, nil
		}
	}

	prefix, err := randomJoinCode(4)
	if err != nil {
		return "", apperrors.InternalError(err)
	}
	return prefix + encodeAlphabet(time.Now().UnixNano(), JoinCodeLength-4), nil
}

// encodeAlphabet renders the low-order digits of n in the join-code alphabet,
// most significant first, padded to width.
func encodeAlphabet(n int64, width int) string {
	base := int64(len(JoinCodeAlphabet))
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = JoinCodeAlphabet[n%base]
		n /= base
	}
	return string(buf)
}

func randomJoinCode(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(JoinCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating join code: %w", err)
		}
		b.WriteByte(JoinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// normalizeJoinCode upper-cases the input and verifies every character is in
// the alphabet. Anything outside it cannot be a code this service issued.
func normalizeJoinCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(JoinCodeAlphabet, rune(code[i])) {
			return "", false
		}
	}
	return code, true
}
