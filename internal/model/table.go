package model

// Table は同期ストアの論理テーブルを表す列挙型。
// キー名の静的な振り分けルールによって、お気に入り系キーと
// それ以外の再生状態キーを別テーブルに分離する。
type Table int

const (
	// TablePlayback は再生状態（音量、再生位置等）を保存するテーブル。
	// お気に入り系以外のすべてのキーがここに入る。
	TablePlayback Table = iota
	// TableFavorites はお気に入り関連のキーを保存するテーブル。
	TableFavorites
)

// favoriteKeys はお気に入りテーブルに振り分けるキー名の固定セット。
// このセットは閉じており、動的に推論してはならない。
var favoriteKeys = map[string]struct{}{
	"favoriteSongs":        {},
	"currentFavoriteIndex": {},
	"favoritePlayMode":     {},
	"favoritePlaybackTime": {},
}

// ClassifyKey はキー名から保存先テーブルを決定する純粋関数。
// 固定のお気に入りキーセットに含まれるキーはTableFavorites、
// それ以外はすべてTablePlaybackに振り分ける。全域的で決定的。
func ClassifyKey(key string) Table {
	if _, ok := favoriteKeys[key]; ok {
		return TableFavorites
	}
	return TablePlayback
}

// Tables は全論理テーブルを列挙順に返す。
func Tables() []Table {
	return []Table{TablePlayback, TableFavorites}
}

// StoreName はSQL上のテーブル名を返す。
func (t Table) StoreName() string {
	switch t {
	case TableFavorites:
		return "favorites_store"
	default:
		return "playback_store"
	}
}

// String はログ出力用のテーブル名を返す。
func (t Table) String() string {
	return t.StoreName()
}
