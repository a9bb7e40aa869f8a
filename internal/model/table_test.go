package model

import "testing"

// お気に入りキーセットの4つのキーがすべてTableFavoritesに振り分けられることを検証
func TestClassifyKey_FavoriteKeys_RouteToFavorites(t *testing.T) {
	keys := []string{
		"favoriteSongs",
		"currentFavoriteIndex",
		"favoritePlayMode",
		"favoritePlaybackTime",
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			if got := ClassifyKey(key); got != TableFavorites {
				t.Errorf("ClassifyKey(%q) = %v, want TableFavorites", key, got)
			}
		})
	}
}

// お気に入りセット外のキーはすべてTablePlaybackに振り分けられることを検証
func TestClassifyKey_OtherKeys_RouteToPlayback(t *testing.T) {
	keys := []string{
		"volume",
		"currentSongIndex",
		"playMode",
		"",
		"FavoriteSongs", // 大文字小文字は区別する
		"favoriteSongs2",
	}

	for _, key := range keys {
		t.Run("key="+key, func(t *testing.T) {
			if got := ClassifyKey(key); got != TablePlayback {
				t.Errorf("ClassifyKey(%q) = %v, want TablePlayback", key, got)
			}
		})
	}
}

// 振り分けが決定的であることを検証（同じキーは常に同じテーブル）
func TestClassifyKey_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if ClassifyKey("favoriteSongs") != TableFavorites {
			t.Fatal("favoriteSongs should always resolve to favorites table")
		}
		if ClassifyKey("volume") != TablePlayback {
			t.Fatal("volume should always resolve to playback table")
		}
	}
}

// SQL上のテーブル名マッピングを検証
func TestTable_StoreName(t *testing.T) {
	if TablePlayback.StoreName() != "playback_store" {
		t.Errorf("TablePlayback.StoreName() = %q, want %q", TablePlayback.StoreName(), "playback_store")
	}
	if TableFavorites.StoreName() != "favorites_store" {
		t.Errorf("TableFavorites.StoreName() = %q, want %q", TableFavorites.StoreName(), "favorites_store")
	}
}

// Tablesが全論理テーブルを返すことを検証
func TestTables_ReturnsAllTables(t *testing.T) {
	tables := Tables()
	if len(tables) != 2 {
		t.Fatalf("len(Tables()) = %d, want 2", len(tables))
	}
}
