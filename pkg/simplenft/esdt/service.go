// Package esdt serves address balances and token properties, combining the
// gateway, the elastic index and the cache.
package esdt

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-nft/pkg/simplenft/address"
	"github.com/tendant/simple-nft/pkg/simplenft/cache"
	"github.com/tendant/simple-nft/pkg/simplenft/cachekey"
	"github.com/tendant/simple-nft/pkg/simplenft/elastic"
	"github.com/tendant/simple-nft/pkg/simplenft/gateway"
)

const accountEsdtIndex = "accountsesdt"

// tokenPropertiesCount is the number of values returned by getTokenProperties
const tokenPropertiesCount = 18

// Gateway is the subset of the gateway client used here
type Gateway interface {
	Get(ctx context.Context, path string, out any, notFound func(message string) bool) (bool, error)
	VMQuery(ctx context.Context, scAddress, funcName string, args []string) ([]string, error)
}

// Elastic is the subset of the elastic client used here
type Elastic interface {
	GetList(ctx context.Context, index, idField string, query *elastic.Query) ([]elastic.Document, error)
}

// RoundClock gives the time left in the current round
type RoundClock interface {
	RemainingUntilNextRound() time.Duration
}

// Service resolves ESDT data
type Service struct {
	gateway         Gateway
	elastic         Elastic
	cache           *cache.Service
	rounds          RoundClock
	contractAddress string
	logger          *slog.Logger
}

// Option configures the service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates an ESDT service. contractAddress is the system smart
// contract that answers getTokenProperties.
func NewService(gw Gateway, es Elastic, cacheService *cache.Service, rounds RoundClock, contractAddress string, opts ...Option) *Service {
	s := &Service{
		gateway:         gw,
		elastic:         es,
		cache:           cacheService,
		rounds:          rounds,
		contractAddress: contractAddress,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAllEsdtsForAddress returns the ESDT balances of an address keyed by
// identifier. The listing changes every round, so it is kept in the local
// cache until the next round starts. Unknown addresses yield an empty map.
func (s *Service) GetAllEsdtsForAddress(ctx context.Context, addr string) (map[string]AccountEsdt, error) {
	ttl := s.rounds.RemainingUntilNextRound()
	return cache.GetOrSetLocal(ctx, s.cache, cachekey.AddressEsdts(addr), ttl, func(ctx context.Context) (map[string]AccountEsdt, error) {
		if address.IsSmartContract(addr) {
			return s.esdtsFromElastic(ctx, addr)
		}
		return s.esdtsFromGateway(ctx, addr)
	}, false)
}

func (s *Service) esdtsFromElastic(ctx context.Context, addr string) (map[string]AccountEsdt, error) {
	query := elastic.NewQuery().
		WithMust(elastic.Match("address", addr)).
		WithPagination(0, 10000)

	docs, err := s.elastic.GetList(ctx, accountEsdtIndex, "identifier", query)
	if err != nil {
		return nil, fmt.Errorf("failed to list esdts for %s: %w", addr, err)
	}

	result := make(map[string]AccountEsdt, len(docs))
	for _, doc := range docs {
		entry, err := elastic.Decode[elasticEsdt](doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode esdt document for %s: %w", addr, err)
		}
		key, value := entry.toAccountEsdt()
		result[key] = value
	}
	return result, nil
}

func (s *Service) esdtsFromGateway(ctx context.Context, addr string) (map[string]AccountEsdt, error) {
	var resp struct {
		Esdts map[string]gatewayEsdt `json:"esdts"`
	}
	found, err := s.gateway.Get(ctx, fmt.Sprintf("address/%s/esdt", addr), &resp, gateway.AccountNotFound)
	if err != nil {
		return nil, err
	}

	result := make(map[string]AccountEsdt, len(resp.Esdts))
	if !found {
		return result, nil
	}
	for key, entry := range resp.Esdts {
		result[key] = entry.toAccountEsdt()
	}
	return result, nil
}

// GetAllEsdtTokens returns the properties of every fungible token.
//
// A failure to list the tokens is logged and yields an empty list. A
// failure to resolve any token's properties fails the call, so the
// list is not cached, while tokens resolved so far stay cached.
func (s *Service) GetAllEsdtTokens(ctx context.Context) ([]TokenProperties, error) {
	return cache.GetOrSet(ctx, s.cache, cachekey.AllEsdtTokens.Key, cachekey.AllEsdtTokens.TTL, s.getAllEsdtTokensRaw, false)
}

func (s *Service) getAllEsdtTokensRaw(ctx context.Context) ([]TokenProperties, error) {
	var resp struct {
		Tokens []string `json:"tokens"`
	}
	if _, err := s.gateway.Get(ctx, "network/esdt/fungible-tokens", &resp, nil); err != nil {
		s.logger.Error("failed to get fungible tokens from gateway", "error", err)
		return []TokenProperties{}, nil
	}

	props, err := cache.BatchProcess(ctx, s.cache, resp.Tokens,
		func(identifier string) string { return cachekey.Token(identifier).Key },
		s.GetEsdtTokenProperties,
		cachekey.OneDay,
	)
	if err != nil {
		return nil, err
	}

	tokens := make([]TokenProperties, 0, len(props))
	for _, p := range props {
		if p != nil {
			tokens = append(tokens, *p)
		}
	}
	return tokens, nil
}

// GetTokenProperties is GetEsdtTokenProperties behind the token cache
func (s *Service) GetTokenProperties(ctx context.Context, identifier string) (*TokenProperties, error) {
	info := cachekey.Token(identifier)
	return cache.GetOrSet(ctx, s.cache, info.Key, info.TTL, func(ctx context.Context) (*TokenProperties, error) {
		return s.GetEsdtTokenProperties(ctx, identifier)
	}, false)
}

// GetEsdtTokenProperties queries and decodes the properties of a token.
// It returns nil when the contract knows no such token.
func (s *Service) GetEsdtTokenProperties(ctx context.Context, identifier string) (*TokenProperties, error) {
	encoded, err := s.gateway.VMQuery(ctx, s.contractAddress, "getTokenProperties", []string{gateway.HexArg(identifier)})
	if err != nil {
		return nil, fmt.Errorf("failed to query properties of token %s: %w", identifier, err)
	}
	if encoded == nil {
		s.logger.Error("could not fetch token properties", "identifier", identifier)
		return nil, nil
	}
	return decodeTokenProperties(identifier, encoded)
}

func decodeTokenProperties(identifier string, encoded []string) (*TokenProperties, error) {
	if len(encoded) < tokenPropertiesCount {
		return nil, fmt.Errorf("token %s: expected %d properties, got %d", identifier, tokenPropertiesCount, len(encoded))
	}

	values := make([]string, len(encoded))
	for i, e := range encoded {
		raw, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("token %s: property %d is not base64: %w", identifier, i, err)
		}
		if i == 2 {
			values[i] = hex.EncodeToString(raw)
		} else {
			values[i] = string(raw)
		}
	}

	owner, err := address.Encode(values[2])
	if err != nil {
		return nil, fmt.Errorf("token %s: invalid owner: %w", identifier, err)
	}

	props := &TokenProperties{
		Identifier:     identifier,
		Name:           values[0],
		Type:           values[1],
		Owner:          owner,
		Minted:         values[3],
		Burnt:          values[4],
		Decimals:       parseDecimals(values[5]),
		IsPaused:       canBool(values[6]),
		CanUpgrade:     canBool(values[7]),
		CanMint:        canBool(values[8]),
		CanBurn:        canBool(values[9]),
		CanChangeOwner: canBool(values[10]),
		CanPause:       canBool(values[11]),
		CanFreeze:      canBool(values[12]),
		CanWipe:        canBool(values[13]),
	}

	if props.Type != TypeFungible {
		canAddSpecialRoles := canBool(values[14])
		canTransferNFTCreateRole := canBool(values[15])
		nftCreateStopped := canBool(values[16])
		wiped := lastPart(values[17])
		props.CanAddSpecialRoles = &canAddSpecialRoles
		props.CanTransferNFTCreateRole = &canTransferNFTCreateRole
		props.NFTCreateStopped = &nftCreateStopped
		props.Wiped = &wiped
	}
	return props, nil
}

// GetTokenSupply returns the circulating supply of a token
func (s *Service) GetTokenSupply(ctx context.Context, identifier string) (string, error) {
	var resp struct {
		Supply string `json:"supply"`
	}
	if _, err := s.gateway.Get(ctx, fmt.Sprintf("network/esdt/supply/%s", identifier), &resp, nil); err != nil {
		return "", err
	}
	return resp.Supply, nil
}
