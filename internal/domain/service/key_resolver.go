package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"

	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/pkg/constants"
)

// KeyResolver turns raw caller signals into identity keys.
type KeyResolver interface {
	// ResolveNetwork derives the network key from a forwarded-address header,
	// falling back to remoteAddr and then to the loopback placeholder. It never fails.
	ResolveNetwork(forwardedFor, remoteAddr string) models.IdentityKey

	// ResolveDevice passes a device token through unchanged. It reports false
	// when the token is empty, in which case the caller skips the device check.
	ResolveDevice(token string) (models.IdentityKey, bool)
}

// KeyResolverConfig configures a KeyResolver.
type KeyResolverConfig struct {
	// Salt keys the network digest. Changing it resets every network quota.
	Salt string
	// TrustedProxyHops selects the forwarded entry to use. Zero takes the first
	// (left-most) entry; N > 0 takes the N-th entry from the right.
	TrustedProxyHops int
}

type keyResolver struct {
	salt []byte
	hops int
}

// NewKeyResolver creates a KeyResolver.
func NewKeyResolver(cfg KeyResolverConfig) KeyResolver {
	hops := cfg.TrustedProxyHops
	if hops < 0 {
		hops = 0
	}
	return &keyResolver{salt: []byte(cfg.Salt), hops: hops}
}

func (r *keyResolver) ResolveNetwork(forwardedFor, remoteAddr string) models.IdentityKey {
	addr := SelectForwardedAddress(forwardedFor, r.hops)
	if addr == "" {
		addr = hostOnly(remoteAddr)
	}
	if addr == "" {
		addr = constants.LoopbackPlaceholder
	}
	return models.NewIdentityKey(constants.KeyTypeNetwork, hashAddress(r.salt, addr))
}

func (r *keyResolver) ResolveDevice(token string) (models.IdentityKey, bool) {
	if token == "" {
		return models.IdentityKey{}, false
	}
	return models.NewIdentityKey(constants.KeyTypeDevice, token), true
}

// HashAddress returns the salted digest of addr as lowercase hex.
// Identical (addr, salt) pairs always produce the same value.
func HashAddress(addr, salt string) string {
	return hashAddress([]byte(salt), addr)
}

func hashAddress(salt []byte, addr string) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(addr))
	return hex.EncodeToString(mac.Sum(nil))
}

// SelectForwardedAddress picks one address out of a comma-separated
// X-Forwarded-For value. hops == 0 returns the first entry; hops == N returns the
// N-th entry counted from the right, clamped to the first entry. Returns "" when
// the header carries no usable entry.
func SelectForwardedAddress(header string, hops int) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	parts := strings.Split(header, ",")
	idx := 0
	if hops > 0 {
		idx = len(parts) - hops
		if idx < 0 {
			idx = 0
		}
	}
	return strings.TrimSpace(parts[idx])
}

// hostOnly strips the port from a RemoteAddr-style value.
func hostOnly(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

//Personal.AI order the ending
