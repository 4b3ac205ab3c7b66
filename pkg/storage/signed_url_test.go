package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("job-1", "rosters/course-7.csv")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	jobID, relPath, _, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "rosters/course-7.csv", relPath)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, _, err := signer.Generate("job-1", "rosters/course-7.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	require.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Minute)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	signer.ttl = -time.Minute

	token, _, err := signer.Generate("job-1", "rosters/course-7.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	_, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "rosters/course-7.csv", relPath)
}
