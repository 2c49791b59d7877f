package simplenft

import (
	"mime"
	"strings"
	"time"
)

// NftType is the on-chain token type of an NFT
type NftType string

const (
	NftTypeNonFungible  NftType = "NonFungibleESDT"
	NftTypeSemiFungible NftType = "SemiFungibleESDT"
	NftTypeMeta         NftType = "MetaESDT"
)

// Nft is the in-memory representation of an NFT being processed.
// It is mutated in place as metadata, media and thumbnails are resolved.
type Nft struct {
	Identifier string         `json:"identifier"`
	Collection string         `json:"collection"`
	Type       NftType        `json:"type"`
	Nonce      uint64         `json:"nonce,omitempty"`
	Name       string         `json:"name,omitempty"`
	Creator    string         `json:"creator,omitempty"`
	Attributes string         `json:"attributes,omitempty"` // base64 encoded
	Uris       []string       `json:"uris,omitempty"`       // base64 encoded
	Metadata   map[string]any `json:"metadata,omitempty"`
	Media      []Media        `json:"media,omitempty"`
}

// Media describes one resolved media file of an NFT
type Media struct {
	URL          string `json:"url"`
	OriginalURL  string `json:"originalUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
}

// ProcessSettings controls which derivation steps are forced or skipped.
type ProcessSettings struct {
	ForceRefreshMetadata  bool `json:"forceRefreshMetadata"`
	ForceRefreshMedia     bool `json:"forceRefreshMedia"`
	ForceRefreshThumbnail bool `json:"forceRefreshThumbnail"`
	SkipRefreshThumbnail  bool `json:"skipRefreshThumbnail"`
}

// AnyForced reports whether at least one step is forced.
func (s ProcessSettings) AnyForced() bool {
	return s.ForceRefreshMetadata || s.ForceRefreshMedia || s.ForceRefreshThumbnail
}

// ProcessStatus is the terminal state of a processing request
type ProcessStatus string

const (
	// ProcessStatusSkipped means nothing was stale, no step ran
	ProcessStatusSkipped ProcessStatus = "skipped"
	// ProcessStatusCompleted means every needed step finished
	ProcessStatusCompleted ProcessStatus = "completed"
)

// ThumbnailResult is the outcome of a thumbnail generation attempt
type ThumbnailResult string

const (
	ThumbnailGenerated                ThumbnailResult = "generated"
	ThumbnailAlreadyExists            ThumbnailResult = "alreadyExists"
	ThumbnailCouldNotExtractThumbnail ThumbnailResult = "couldNotExtractThumbnail"
)

// StoredNft is an enriched NFT as persisted by a Repository
type StoredNft struct {
	Nft       Nft       `json:"nft"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var acceptedMediaTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/svg+xml":   true,
	"audio/mpeg":      true,
	"audio/mp3":       true,
	"audio/wav":       true,
	"audio/x-wav":     true,
	"audio/ogg":       true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"video/ogg":       true,
}

// NormalizeMimeType strips parameters and lowercases a Content-Type value.
func NormalizeMimeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// IsMediaTypeAccepted returns true if the content type is one of the media
// types an NFT may point to.
func IsMediaTypeAccepted(contentType string) bool {
	return acceptedMediaTypes[NormalizeMimeType(contentType)]
}

// AcceptedMediaTypes returns the allow-listed media types.
func AcceptedMediaTypes() []string {
	types := make([]string, 0, len(acceptedMediaTypes))
	for t := range acceptedMediaTypes {
		types = append(types, t)
	}
	return types
}
