package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/repo/memory"
)

func TestRepository(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	nft := &simplenft.Nft{
		Identifier: "COL-a1b2-01",
		Collection: "COL-a1b2",
		Type:       simplenft.NftTypeNonFungible,
		Metadata:   map[string]any{"description": "first"},
		Media:      []simplenft.Media{{URL: "https://ipfs.example/ipfs/Qm1", FileType: "image/png"}},
	}

	t.Run("SaveNft and GetNft", func(t *testing.T) {
		require.NoError(t, repo.SaveNft(ctx, nft))

		stored, err := repo.GetNft(ctx, "COL-a1b2-01")
		require.NoError(t, err)
		assert.Equal(t, "COL-a1b2", stored.Nft.Collection)
		assert.Equal(t, "first", stored.Nft.Metadata["description"])
		assert.Len(t, stored.Nft.Media, 1)
		assert.False(t, stored.UpdatedAt.IsZero())
	})

	t.Run("stored copy is isolated", func(t *testing.T) {
		nft.Metadata["description"] = "mutated"

		stored, err := repo.GetNft(ctx, "COL-a1b2-01")
		require.NoError(t, err)
		assert.Equal(t, "first", stored.Nft.Metadata["description"])

		stored.Nft.Media[0].URL = "changed"
		again, err := repo.GetNft(ctx, "COL-a1b2-01")
		require.NoError(t, err)
		assert.Equal(t, "https://ipfs.example/ipfs/Qm1", again.Nft.Media[0].URL)
	})

	t.Run("SaveNft replaces", func(t *testing.T) {
		require.NoError(t, repo.SaveNft(ctx, &simplenft.Nft{Identifier: "COL-a1b2-01", Collection: "COL-a1b2"}))
		stored, err := repo.GetNft(ctx, "COL-a1b2-01")
		require.NoError(t, err)
		assert.Nil(t, stored.Nft.Metadata)
		assert.Equal(t, []string{"COL-a1b2-01"}, repo.Identifiers())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetNft(ctx, "NOPE-000000-01")
		assert.ErrorIs(t, err, simplenft.ErrNotFound)
	})

	t.Run("requires identifier", func(t *testing.T) {
		assert.Error(t, repo.SaveNft(ctx, &simplenft.Nft{}))
	})
}
