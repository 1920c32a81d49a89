// Package mapper normalizes launch.meme payloads from the REST snapshot and the
// realtime feed into canonical domain records.
//
// Timestamp policy per origin:
//   - OriginSnapshot (REST /tokens): mint_time is epoch milliseconds.
//   - OriginPush (realtime channels): mint_time and trade timestamps are epoch seconds.
//
// The policy is explicit and configurable with WithPolicy; the mapper never guesses
// the scale from the magnitude of the value.
package mapper

import (
	"time"

	"launchmeme-terminal/internal/domain"
)

// Origin identifies which channel a payload came from.
type Origin int

const (
	OriginSnapshot Origin = iota
	OriginPush
)

// String returns the string representation of Origin.
func (o Origin) String() string {
	if o == OriginPush {
		return "push"
	}
	return "snapshot"
}

// TimestampScale is the unit of an epoch timestamp.
type TimestampScale int

const (
	ScaleMilliseconds TimestampScale = iota
	ScaleSeconds
)

// Policy maps each origin to its timestamp scale.
type Policy struct {
	SnapshotScale TimestampScale
	PushScale     TimestampScale
}

// DefaultPolicy returns the documented per-origin timestamp policy.
func DefaultPolicy() Policy {
	return Policy{
		SnapshotScale: ScaleMilliseconds,
		PushScale:     ScaleSeconds,
	}
}

// scaleFor returns the timestamp scale for an origin.
func (p Policy) scaleFor(origin Origin) TimestampScale {
	if origin == OriginPush {
		return p.PushScale
	}
	return p.SnapshotScale
}

// Source keys per token field, in precedence order.
var (
	keysID        = []string{"token"}
	keysName      = []string{"name"}
	keysSymbol    = []string{"symbol"}
	keysPriceUSD  = []string{"priceUsd", "price"}
	keysPriceSOL  = []string{"priceSol"}
	keysChange    = []string{"change24h"}
	keysLiquidity = []string{"_balanceSol", "liquidity"}
	keysFDV       = []string{"marketCapUsd"}
	keysVolume    = []string{"volumeUsd", "volume24h"}
	keysProgress  = []string{"progress"}
	keysHolders   = []string{"holders"} // origin-provided count
	keysScore     = []string{"score"}   // derived estimate, used only without holders
	keysIcon      = []string{"photo"}
	keysBanner    = []string{"metadataUri"}
	keysMintTime  = []string{"mint_time"}
	keysNetwork   = []string{"network"}
	keysFallback  = []string{"isFallback"}
)

// Mapper converts raw payloads into domain records.
type Mapper struct {
	policy Policy
	now    func() time.Time
}

// Option configures Mapper.
type Option func(*Mapper)

// WithPolicy sets the per-origin timestamp policy.
func WithPolicy(p Policy) Option {
	return func(m *Mapper) {
		m.policy = p
	}
}

// WithClock sets the clock used for records without a creation time.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) {
		m.now = now
	}
}

// New creates a Mapper with the default policy.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		policy: DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the mapper's timestamp policy.
func (m *Mapper) Policy() Policy {
	return m.policy
}

// Normalize maps a raw token payload to a Token.
// Returns false when token, name or symbol is missing; the payload must then be dropped.
func (m *Mapper) Normalize(origin Origin, raw domain.RawToken) (domain.Token, bool) {
	if raw == nil {
		return domain.Token{}, false
	}

	id := stringOf(raw, keysID...)
	name := stringOf(raw, keysName...)
	symbol := stringOf(raw, keysSymbol...)
	if id == "" || name == "" || symbol == "" {
		return domain.Token{}, false
	}

	createdAt := toTime(first(raw, keysMintTime), m.policy.scaleFor(origin))
	if createdAt.IsZero() {
		createdAt = m.now().UTC()
	}

	network := stringOf(raw, keysNetwork...)
	if network == "" {
		network = domain.DefaultNetwork
	}

	placeholder, _ := raw[keysFallback[0]].(bool)

	return domain.Token{
		ID:                id,
		Name:              name,
		Symbol:            symbol,
		PriceUSD:          floatOf(raw, keysPriceUSD...),
		PriceSOL:          floatOf(raw, keysPriceSOL...),
		Change24h:         floatOf(raw, keysChange...),
		Liquidity:         floatOf(raw, keysLiquidity...),
		FullyDilutedValue: floatOf(raw, keysFDV...),
		Volume24h:         floatOf(raw, keysVolume...),
		Progress:          domain.ClampProgress(floatOf(raw, keysProgress...)),
		HolderCount:       holderCount(raw),
		Network:           network,
		IconURL:           stringOf(raw, keysIcon...),
		BannerURL:         stringOf(raw, keysBanner...),
		CreatedAt:         createdAt,
		IsPlaceholder:     placeholder,
		RawSource:         raw,
	}, true
}

// holderCount prefers the origin-provided holder count over the derived score.
func holderCount(raw domain.RawToken) int64 {
	if raw.Has(keysHolders[0]) {
		return int64(floatOf(raw, keysHolders...))
	}
	return int64(floatOf(raw, keysScore...))
}

func first(raw domain.RawToken, keys []string) any {
	v, _ := firstPresent(raw, keys...)
	return v
}
