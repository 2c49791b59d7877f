package cachekey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, Info{Key: "nftMedia:COL-abcd-01", TTL: 24 * time.Hour}, NftMedia("COL-abcd-01"))
	assert.Equal(t, "nftMetadata:COL-abcd-01", NftMetadata("COL-abcd-01").Key)
	assert.Equal(t, "nftMediaProperties:https://ipfs.io/ipfs/abc", NftMediaProperties("https://ipfs.io/ipfs/abc").Key)
	assert.Equal(t, Info{Key: "nftThumbnail:COL-abcd-01:1a2b3c4d", TTL: 30 * 24 * time.Hour}, NftThumbnail("COL-abcd-01", "1a2b3c4d"))
	assert.Equal(t, "address:erd1abc:esdts", AddressEsdts("erd1abc"))
	assert.Equal(t, "token:WEGLD-bd4d79", Token("WEGLD-bd4d79").Key)
	assert.Equal(t, "allEsdtTokens", AllEsdtTokens.Key)
	assert.Equal(t, 10*time.Minute, AllEsdtTokens.TTL)
}
