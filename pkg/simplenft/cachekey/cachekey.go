// Package cachekey defines the cache key namespaces shared with any
// pre-existing store. Keys must not change format.
package cachekey

import (
	"fmt"
	"time"
)

const (
	OneMinute = time.Minute
	OneHour   = time.Hour
	OneDay    = 24 * time.Hour
	OneMonth  = 30 * OneDay
)

// Info is a cache key together with its default ttl
type Info struct {
	Key string
	TTL time.Duration
}

// NftMedia is the resolved media list of an NFT
func NftMedia(identifier string) Info {
	return Info{Key: fmt.Sprintf("nftMedia:%s", identifier), TTL: OneDay}
}

// NftMetadata is the resolved metadata of an NFT
func NftMetadata(identifier string) Info {
	return Info{Key: fmt.Sprintf("nftMetadata:%s", identifier), TTL: OneDay}
}

// NftMediaProperties is the content type and length probed for a media url
func NftMediaProperties(url string) Info {
	return Info{Key: fmt.Sprintf("nftMediaProperties:%s", url), TTL: OneDay}
}

// NftThumbnail marks a generated thumbnail for an NFT media url hash
func NftThumbnail(identifier, urlHash string) Info {
	return Info{Key: fmt.Sprintf("nftThumbnail:%s:%s", identifier, urlHash), TTL: OneMonth}
}

// AddressEsdts is the ESDT listing of an address. Its ttl is the time left
// in the current round, so none is given here.
func AddressEsdts(address string) string {
	return fmt.Sprintf("address:%s:esdts", address)
}

// Token is the decoded properties of one token
func Token(identifier string) Info {
	return Info{Key: fmt.Sprintf("token:%s", identifier), TTL: OneDay}
}

// AllEsdtTokens is the list of all fungible tokens with their properties
var AllEsdtTokens = Info{Key: "allEsdtTokens", TTL: 10 * OneMinute}
