package migrate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/systmms/keyshift/internal/secure"
	"github.com/systmms/keyshift/pkg/secret"
)

// signedPrefix marks a cookie value as signed, matching the cookie-signature
// layout used by express-session ("s:<id>.<base64 hmac>", padding stripped).
const signedPrefix = "s:"

// Codec signs and verifies session-id cookie values with HMAC-SHA256.
//
// Verification tries the active secret first, then the previous one. This is
// the dual-secret capability a store-level wrapper cannot provide on its
// own: only the signing layer can tell which secret a cookie was issued
// under, by re-verifying the signature against each candidate.
//
// Key material is held in memguard enclaves and only decrypted for the
// duration of a single HMAC computation.
type Codec struct {
	active   *secure.Key
	previous *secure.Key
}

// NewCodec builds a codec for the given migration context.
func NewCodec(mctx Context) *Codec {
	c := &Codec{
		active: secure.NewKeyFromString(mctx.Active().Value),
	}
	if prev, ok := mctx.Previous(); ok {
		c.previous = secure.NewKeyFromString(prev.Value)
	}
	return c
}

// NewCodecFromSecrets builds a codec directly from secrets, for hosts that
// do not construct a MigrationStore.
func NewCodecFromSecrets(active secret.Secret, previous *secret.Secret) *Codec {
	return NewCodec(NewContext(active, previous))
}

// SignID signs a session id with the active secret.
func (c *Codec) SignID(id string) (string, error) {
	sig, err := c.sign(c.active, id)
	if err != nil {
		return "", err
	}
	return signedPrefix + id + "." + sig, nil
}

// VerifyID verifies a signed cookie value. It returns the embedded session
// id, whether the signature matched the previous secret rather than the
// active one, and whether verification succeeded at all.
func (c *Codec) VerifyID(cookie string) (id string, usedPrevious bool, ok bool) {
	if !strings.HasPrefix(cookie, signedPrefix) {
		return "", false, false
	}
	payload := strings.TrimPrefix(cookie, signedPrefix)
	dot := strings.LastIndex(payload, ".")
	if dot <= 0 || dot == len(payload)-1 {
		return "", false, false
	}
	id, gotSig := payload[:dot], payload[dot+1:]

	if c.matches(c.active, id, gotSig) {
		return id, false, true
	}
	if c.previous != nil && c.matches(c.previous, id, gotSig) {
		return id, true, true
	}
	return "", false, false
}

// Destroy wipes the codec's key material. The codec is unusable afterwards.
func (c *Codec) Destroy() {
	c.active.Destroy()
	if c.previous != nil {
		c.previous.Destroy()
	}
}

func (c *Codec) sign(key *secure.Key, id string) (string, error) {
	var sig string
	err := key.Use(func(material []byte) error {
		mac := hmac.New(sha256.New, material)
		if _, err := mac.Write([]byte(id)); err != nil {
			return err
		}
		sig = strings.TrimRight(base64.StdEncoding.EncodeToString(mac.Sum(nil)), "=")
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign session id: %w", err)
	}
	return sig, nil
}

func (c *Codec) matches(key *secure.Key, id, gotSig string) bool {
	want, err := c.sign(key, id)
	if err != nil {
		return false
	}
	// Compare the computed signature against the presented one in constant
	// time; the presented value is attacker-controlled.
	return hmac.Equal([]byte(want), []byte(gotSig))
}
