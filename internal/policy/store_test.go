// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_EmptyStoreAllows(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, Allow, s.Decide("anything", "anywhere.example"))
	assert.Equal(t, Allow, s.Decide("", ""))
}

func TestDecide_WhitelistBeatsAppBlacklist(t *testing.T) {
	s := NewStore(0)
	s.AddPairWhitelist("Safari", "ads.example.com")
	s.AddAppBlacklist("Safari")

	assert.Equal(t, Allow, s.Decide("Safari", "ads.example.com"))
	assert.Equal(t, Block, s.Decide("Safari", "tracker.example.com"))
	assert.Equal(t, Allow, s.Decide("Firefox", "tracker.example.com"))
}

func TestDecide_PairBlacklist(t *testing.T) {
	s := NewStore(0)
	s.AddPairBlacklist("curl", "evil.example.com")

	assert.Equal(t, Block, s.Decide("curl", "evil.example.com"))
	assert.Equal(t, Allow, s.Decide("curl", "ok.example.com"))
	assert.Equal(t, Allow, s.Decide("wget", "evil.example.com"))
}

func TestDecide_WhitelistBeatsPairBlacklist(t *testing.T) {
	s := NewStore(0)
	s.AddPairBlacklist("curl", "evil.example.com")
	s.AddPairWhitelist("curl", "evil.example.com")

	assert.Equal(t, Allow, s.Decide("curl", "evil.example.com"))
}

func TestDecide_AppBlacklistBeatsPairBlacklist(t *testing.T) {
	s := NewStore(0)
	s.AddAppBlacklist("Spotify")
	s.AddPairBlacklist("Spotify", "cdn.example.com")

	assert.Equal(t, Block, s.Decide("Spotify", "cdn.example.com"))
	assert.Equal(t, Block, s.Decide("Spotify", "other.example.com"))
}

func TestDecide_CaseSensitive(t *testing.T) {
	s := NewStore(0)
	s.AddPairBlacklist("Mail", "ads.tracker.com")
	assert.Equal(t, Allow, s.Decide("mail", "ads.tracker.com"))
	assert.Equal(t, Allow, s.Decide("Mail", "ADS.tracker.com"))
}

func TestAddIsIdempotent(t *testing.T) {
	s := NewStore(0)
	s.AddAppBlacklist("Spotify")
	s.AddAppBlacklist("Spotify")
	s.AddPairBlacklist("a", "b")
	s.AddPairBlacklist("a", "b")

	assert.Equal(t, Stats{PairBlacklist: 1, AppBlacklist: 1}, s.Stats())
}

func TestBoundedItemFields(t *testing.T) {
	long := strings.Repeat("a", MaxAppNameLen+10)
	it := NewItem(long, strings.Repeat("d", MaxDomainLen+1))
	assert.Len(t, it.App, MaxAppNameLen)
	assert.Len(t, it.Domain, MaxDomainLen)

	s := NewStore(0)
	s.AddAppBlacklist(long)
	assert.Equal(t, Block, s.Decide(long[:MaxAppNameLen]+"zzz", "x"))
}

func TestPairKeysDoNotCollide(t *testing.T) {
	s := NewStore(0)
	s.AddPairBlacklist("a", "b,c")
	assert.Equal(t, Allow, s.Decide("a,b", "c"))
	assert.Equal(t, Block, s.Decide("a", "b,c"))

	s.AddPairWhitelist("x,y", "z")
	assert.False(t, s.InPairWhitelist("x", "y,z"))
}

func TestRemove(t *testing.T) {
	s := NewStore(0)
	s.AddAppBlacklist("Spotify")
	s.AddPairWhitelist("Spotify", "api.spotify.com")
	s.AddPairBlacklist("curl", "evil.example.com")

	assert.True(t, s.RemovePairWhitelist("Spotify", "api.spotify.com"))
	assert.Equal(t, Block, s.Decide("Spotify", "api.spotify.com"))

	assert.True(t, s.RemoveAppBlacklist("Spotify"))
	assert.Equal(t, Allow, s.Decide("Spotify", "api.spotify.com"))

	assert.True(t, s.RemovePairBlacklist("curl", "evil.example.com"))
	assert.False(t, s.RemovePairBlacklist("curl", "evil.example.com"))
	assert.Equal(t, Stats{}, s.Stats())
}

func TestMembership(t *testing.T) {
	s := NewStore(0)
	s.AddAppBlacklist("Spotify")
	s.AddPairWhitelist("Spotify", "api.spotify.com")

	assert.True(t, s.InAppBlacklist("Spotify"))
	assert.True(t, s.InPairWhitelist("Spotify", "api.spotify.com"))
	assert.False(t, s.InPairBlacklist("Spotify", "api.spotify.com"))
}

func TestReload(t *testing.T) {
	s := NewStore(0)
	s.AddAppBlacklist("Old")

	err := s.Reload(func(w *Writer) error {
		w.AddAppBlacklist("New")
		w.AddPairWhitelist("New", "ok.example.com")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, Allow, s.Decide("Old", "x"), "stale rules must not survive a reload")
	assert.Equal(t, Block, s.Decide("New", "x"))
	assert.Equal(t, Allow, s.Decide("New", "ok.example.com"))
}

func TestReloadErrorKeepsPartialState(t *testing.T) {
	s := NewStore(0)
	s.AddAppBlacklist("Old")

	boom := errors.New("boom")
	err := s.Reload(func(w *Writer) error {
		w.AddPairBlacklist("a", "b")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Stats{PairBlacklist: 1}, s.Stats())
}

func TestReset(t *testing.T) {
	s := NewStore(0)
	s.AddAppBlacklist("Spotify")
	s.Reset()
	assert.Equal(t, Stats{}, s.Stats())
	assert.Equal(t, Allow, s.Decide("Spotify", "x"))
}

func TestConcurrentDecideDuringReload(t *testing.T) {
	s := NewStore(0)
	load := func(w *Writer) error {
		w.AddAppBlacklist("locked")
		for i := 0; i < 200; i++ {
			w.AddPairWhitelist("locked", fmt.Sprintf("ok%d.example.com", i))
		}
		return nil
	}
	require.NoError(t, s.Reload(load))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// a reader must never see the app rule without its exceptions
				if s.Decide("locked", "ok199.example.com") != Allow {
					t.Error("observed half-built store")
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Reload(load))
	}
	close(stop)
	wg.Wait()
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "block", Block.String())
}
