package esdt

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tells fungible balances apart from NFT instances in an address listing
type Kind string

const (
	KindToken Kind = "token"
	KindNft   Kind = "nft"
)

// AccountEsdt is one entry of an address ESDT listing. NFT fields are only
// set when Kind is KindNft.
type AccountEsdt struct {
	Kind            Kind     `json:"kind"`
	TokenIdentifier string   `json:"tokenIdentifier"`
	Balance         string   `json:"balance"`
	Nonce           uint64   `json:"nonce,omitempty"`
	Name            string   `json:"name,omitempty"`
	Creator         string   `json:"creator,omitempty"`
	Attributes      string   `json:"attributes,omitempty"`
	Royalties       string   `json:"royalties,omitempty"`
	Uris            []string `json:"uris,omitempty"`
}

// TokenProperties are the decoded on-chain properties of a token.
// The pointer fields only apply to non-fungible tokens and are nil for
// fungible ones.
type TokenProperties struct {
	Identifier               string  `json:"identifier"`
	Name                     string  `json:"name"`
	Type                     string  `json:"type"`
	Owner                    string  `json:"owner"`
	Minted                   string  `json:"minted"`
	Burnt                    string  `json:"burnt"`
	Decimals                 int     `json:"decimals"`
	IsPaused                 bool    `json:"isPaused"`
	CanUpgrade               bool    `json:"canUpgrade"`
	CanMint                  bool    `json:"canMint"`
	CanBurn                  bool    `json:"canBurn"`
	CanChangeOwner           bool    `json:"canChangeOwner"`
	CanPause                 bool    `json:"canPause"`
	CanFreeze                bool    `json:"canFreeze"`
	CanWipe                  bool    `json:"canWipe"`
	CanAddSpecialRoles       *bool   `json:"canAddSpecialRoles,omitempty"`
	CanTransferNFTCreateRole *bool   `json:"canTransferNFTCreateRole,omitempty"`
	NFTCreateStopped         *bool   `json:"NFTCreateStopped,omitempty"`
	Wiped                    *string `json:"wiped,omitempty"`
}

// TypeFungible is the token type whose properties carry no NFT fields
const TypeFungible = "FungibleESDT"

// flexString decodes a JSON string or number into a string
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// gatewayEsdt is an entry of the gateway's address/{addr}/esdt listing
type gatewayEsdt struct {
	TokenIdentifier string     `json:"tokenIdentifier"`
	Balance         flexString `json:"balance"`
	Nonce           uint64     `json:"nonce"`
	Name            string     `json:"name"`
	Creator         string     `json:"creator"`
	Attributes      string     `json:"attributes"`
	Royalties       flexString `json:"royalties"`
	Uris            []string   `json:"uris"`
}

func (e gatewayEsdt) toAccountEsdt() AccountEsdt {
	if e.Nonce == 0 {
		return AccountEsdt{Kind: KindToken, TokenIdentifier: e.TokenIdentifier, Balance: string(e.Balance)}
	}
	return AccountEsdt{
		Kind:            KindNft,
		TokenIdentifier: e.TokenIdentifier,
		Balance:         string(e.Balance),
		Nonce:           e.Nonce,
		Name:            e.Name,
		Creator:         e.Creator,
		Attributes:      e.Attributes,
		Royalties:       string(e.Royalties),
		Uris:            e.Uris,
	}
}

// elasticEsdt is a document of the accountsesdt index
type elasticEsdt struct {
	Identifier string     `json:"identifier"`
	Token      string     `json:"token"`
	TokenNonce *uint64    `json:"tokenNonce"`
	Balance    flexString `json:"balance"`
	Data       struct {
		Attributes string     `json:"attributes"`
		Creator    string     `json:"creator"`
		Name       string     `json:"name"`
		Royalties  flexString `json:"royalties"`
		Uris       []string   `json:"uris"`
	} `json:"data"`
}

// toAccountEsdt returns the listing key with the entry. Documents without
// a nonce are fungible balances keyed by token.
func (e elasticEsdt) toAccountEsdt() (string, AccountEsdt) {
	if e.TokenNonce == nil {
		return e.Token, AccountEsdt{Kind: KindToken, TokenIdentifier: e.Token, Balance: string(e.Balance)}
	}
	return e.Identifier, AccountEsdt{
		Kind:            KindNft,
		TokenIdentifier: e.Identifier,
		Balance:         string(e.Balance),
		Nonce:           *e.TokenNonce,
		Name:            e.Data.Name,
		Creator:         e.Data.Creator,
		Attributes:      e.Data.Attributes,
		Royalties:       string(e.Data.Royalties),
		Uris:            e.Data.Uris,
	}
}

// lastPart returns the text after the last '-'
func lastPart(value string) string {
	if i := strings.LastIndexByte(value, '-'); i >= 0 {
		return value[i+1:]
	}
	return value
}

// canBool decodes flags such as "CanMint-true"
func canBool(value string) bool {
	return lastPart(value) == "true"
}

func parseDecimals(value string) int {
	n, err := strconv.Atoi(lastPart(value))
	if err != nil {
		return 0
	}
	return n
}
