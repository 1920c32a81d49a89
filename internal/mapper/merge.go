package mapper

import (
	"launchmeme-terminal/internal/domain"
)

// Merge combines an existing token with an incoming partial update.
//
// A field is taken from incoming only when one of its source keys is present and
// non-null in incoming.RawSource; absent fields keep the existing value even when
// the incoming value is the zero default. When incoming has no raw payload,
// non-zero incoming values win. The merged raw payload is existing overlaid by incoming.
func Merge(existing, incoming domain.Token) domain.Token {
	merged := existing.Clone()
	src := incoming.RawSource

	take := func(keys []string) bool {
		if src == nil {
			return false
		}
		_, ok := firstPresent(src, keys...)
		return ok
	}

	mergeString := func(dst *string, val string, keys []string) {
		if take(keys) || (src == nil && val != "") {
			if val != "" {
				*dst = val
			}
		}
	}
	mergeFloat := func(dst *float64, val float64, keys []string) {
		if take(keys) || (src == nil && val != 0) {
			*dst = val
		}
	}

	mergeString(&merged.Name, incoming.Name, keysName)
	mergeString(&merged.Symbol, incoming.Symbol, keysSymbol)
	mergeFloat(&merged.PriceUSD, incoming.PriceUSD, keysPriceUSD)
	mergeFloat(&merged.PriceSOL, incoming.PriceSOL, keysPriceSOL)
	mergeFloat(&merged.Change24h, incoming.Change24h, keysChange)
	mergeFloat(&merged.Liquidity, incoming.Liquidity, keysLiquidity)
	mergeFloat(&merged.FullyDilutedValue, incoming.FullyDilutedValue, keysFDV)
	mergeFloat(&merged.Volume24h, incoming.Volume24h, keysVolume)
	mergeFloat(&merged.Progress, incoming.Progress, keysProgress)
	mergeString(&merged.Network, incoming.Network, keysNetwork)
	mergeString(&merged.IconURL, incoming.IconURL, keysIcon)
	mergeString(&merged.BannerURL, incoming.BannerURL, keysBanner)

	// A score estimate never replaces an origin-provided holder count.
	switch {
	case take(keysHolders):
		merged.HolderCount = incoming.HolderCount
	case take(keysScore) && !existing.RawSource.Has(keysHolders[0]):
		merged.HolderCount = incoming.HolderCount
	case src == nil && incoming.HolderCount != 0:
		merged.HolderCount = incoming.HolderCount
	}
	if take(keysMintTime) || (src == nil && !incoming.CreatedAt.IsZero()) {
		merged.CreatedAt = incoming.CreatedAt
	}
	if take(keysFallback) {
		merged.IsPlaceholder = incoming.IsPlaceholder
	}

	merged.RawSource = overlay(existing.RawSource, src)
	return merged
}

func overlay(base, top domain.RawToken) domain.RawToken {
	if base == nil && top == nil {
		return nil
	}
	out := make(domain.RawToken, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
