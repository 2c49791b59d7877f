// Package nfturl derives the URLs and object keys of NFT media. All
// functions are pure: the same input always yields the same URL.
package nfturl

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const ipfsScheme = "ipfs://"

var publicGateways = []string{
	"https://ipfs.io/ipfs",
	"https://gateway.pinata.cloud/ipfs",
	"https://dweb.link/ipfs",
}

// HashLength is the number of hex characters of a url hash
const HashLength = 8

var pinataSubdomain = regexp.MustCompile(`^https://\w*\.mypinata\.cloud/ipfs`)

// ErrInvalidURI is returned for uris that are not base64
var ErrInvalidURI = errors.New("invalid nft uri")

// Strategy maps NFT uris onto the configured gateways
type Strategy struct {
	ExternalMediaURL string // e.g. "https://media.example.com"
	IpfsURL          string // e.g. "https://ipfs.example.com/ipfs"
}

// NewStrategy creates a strategy, trimming trailing slashes
func NewStrategy(externalMediaURL, ipfsURL string) *Strategy {
	return &Strategy{
		ExternalMediaURL: strings.TrimSuffix(externalMediaURL, "/"),
		IpfsURL:          strings.TrimSuffix(ipfsURL, "/"),
	}
}

// DecodeURI decodes a base64 uri as stored on chain
func DecodeURI(encoded string) (string, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(encoded); err == nil {
			return string(raw), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidURI, encoded)
}

// FetchURL rewrites public ipfs gateway locations onto the internal ipfs
// gateway. Other urls are returned unchanged.
func (s *Strategy) FetchURL(url string) string {
	for _, gateway := range publicGateways {
		if strings.HasPrefix(url, gateway) {
			return s.IpfsURL + strings.TrimPrefix(url, gateway)
		}
	}
	if loc := pinataSubdomain.FindStringIndex(url); loc != nil {
		return s.IpfsURL + url[loc[1]:]
	}
	if strings.HasPrefix(url, ipfsScheme) {
		return s.IpfsURL + "/" + strings.TrimPrefix(url, ipfsScheme)
	}
	return url
}

// ThumbnailURL is where the thumbnail of url is served
func (s *Strategy) ThumbnailURL(collection, url string) string {
	return s.ExternalMediaURL + "/" + ThumbnailObjectKey(collection, url)
}

// Hash returns the short sha256 hash identifying a media url
func Hash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// ThumbnailObjectKey is the blob key of the thumbnail of url
func ThumbnailObjectKey(collection, url string) string {
	return fmt.Sprintf("nfts/thumbnail/%s-%s", collection, Hash(url))
}
