package callback

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verigate/pkg/domain-errors"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner("secret", "verigate", time.Hour)

	token, err := s.Sign("att-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, s.Verify(token, "att-1"))
}

func TestSignerRejects(t *testing.T) {
	s := NewSigner("secret", "verigate", time.Hour)
	token, err := s.Sign("att-1")
	require.NoError(t, err)

	t.Run("other attempt", func(t *testing.T) {
		err := s.Verify(token, "att-2")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("missing token", func(t *testing.T) {
		err := s.Verify("", "att-1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("different key", func(t *testing.T) {
		other := NewSigner("other", "verigate", time.Hour)
		err := other.Verify(token, "att-1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("expired", func(t *testing.T) {
		later := NewSigner("secret", "verigate", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		err := later.Verify(token, "att-1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestDisabledSigner(t *testing.T) {
	s := NewSigner("", "verigate", 0)
	assert.False(t, s.Enabled())

	token, err := s.Sign("att-1")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.NoError(t, s.Verify("", "att-1"))

	var nilSigner *Signer
	assert.NoError(t, nilSigner.Verify("garbage", "att-1"))
}

func TestSignerURL(t *testing.T) {
	s := NewSigner("secret", "verigate", time.Hour)
	raw, err := s.URL("https://app.example", "att-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "app.example", u.Host)
	assert.Equal(t, Path, u.Path)
	assert.Equal(t, "att-1", u.Query().Get(ParamAttempt))
	assert.NoError(t, s.Verify(u.Query().Get(ParamToken), "att-1"))

	plain, err := NewSigner("", "", 0).URL("https://app.example", "att-1")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/verification/callback?attempt=att-1", plain)
}
