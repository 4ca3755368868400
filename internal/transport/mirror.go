// Package transport implements mirror selection via DNS SRV
// records, key/tag authentication using the upstream protocol's RSA
// public-decrypt signature scheme, and the bulk fetch pool.
package transport

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"sort"

	mrand "math/rand"
)

// Mirror is one candidate server: its host name and SRV priority/weight.
// It holds no per-run authentication state.
type Mirror struct {
	Host     string
	Priority uint16
	Weight   uint16
}

// errNoSRV signals the SRV lookup found no such service, distinct from
// a harder DNS failure.
var errNoSRV = errors.New("transport: no SRV records")

// LookupMirrors resolves name into an ordered list of Mirrors to try,
// the "main external entry point" lookup.servers() plays in
// freebsd-update: SRV lookup first, priority-grouped, weight-shuffled
// within each group, then flattened back into a single try-in-order
// list. When no SRV record exists, name itself becomes the sole
// candidate, treating the name as a single host.
func LookupMirrors(ctx context.Context, resolver *net.Resolver, name string) ([]Mirror, error) {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	mirrors, err := srvLookup(ctx, resolver, name)
	if err != nil {
		if errors.Is(err, errNoSRV) {
			return []Mirror{{Host: name}}, nil
		}
		return nil, err
	}

	groups := byPriority(mirrors)
	shuffleWeights(groups, mrand.New(mrand.NewSource(cryptoSeed())))

	var out []Mirror
	for _, g := range groups {
		out = append(out, g...)
	}
	return out, nil
}

func srvLookup(ctx context.Context, resolver *net.Resolver, name string) ([]Mirror, error) {
	_, addrs, err := resolver.LookupSRV(ctx, "http", "tcp", name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, errNoSRV
		}
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errNoSRV
	}

	out := make([]Mirror, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Mirror{
			Host:     trimTrailingDot(a.Target),
			Priority: a.Priority,
			Weight:   a.Weight,
		})
	}
	return out, nil
}

func trimTrailingDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

// byPriority groups mirrors into priority-ordered buckets, mirroring
// freebsd-update's srvs_by_pri: sort by (priority, weight, host) then
// bucket consecutive equal priorities.
func byPriority(mirrors []Mirror) [][]Mirror {
	sorted := append([]Mirror(nil), mirrors...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight < sorted[j].Weight
		}
		return sorted[i].Host < sorted[j].Host
	})

	var groups [][]Mirror
	var cur []Mirror
	var lastPri uint16
	haveLast := false
	for _, m := range sorted {
		if haveLast && m.Priority != lastPri {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, m)
		lastPri = m.Priority
		haveLast = true
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// shuffleWeights reorders each priority group in place using RFC 2782's
// weighted-selection algorithm, the same two-function split
// (shuffle_weights_be/shuffle_weight) freebsd-update uses so tests can
// inject a deterministic source.
func shuffleWeights(groups [][]Mirror, rng *mrand.Rand) {
	for i, g := range groups {
		groups[i] = shuffleWeight(g, rng)
	}
}

// cryptoSeed draws a fresh seed from crypto/rand for each real lookup,
// since the shuffle only needs unpredictability, not a CSPRNG itself —
// same tradeoff freebsd-update documents choosing rand_pcg over a
// heavier generator for.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

func shuffleWeight(mirrors []Mirror, rng *mrand.Rand) []Mirror {
	remaining := append([]Mirror(nil), mirrors...)
	out := make([]Mirror, 0, len(remaining))

	for len(remaining) > 0 {
		if len(remaining) == 1 {
			out = append(out, remaining[0])
			break
		}

		var sum int64
		cumulative := make([]int64, len(remaining))
		for i, m := range remaining {
			cumulative[i] = sum
			sum += int64(m.Weight) + 1 // +1 so a zero-weight entry still has a chance
		}

		pick := rng.Int63n(sum)
		idx := len(remaining) - 1
		for i := len(cumulative) - 1; i >= 0; i-- {
			if cumulative[i] <= pick {
				idx = i
				break
			}
		}

		out = append(out, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return out
}
