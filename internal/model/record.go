package model

import "time"

// KeyValueRecord は同期ストアの1レコードを表す。
// (UserID, Key) の複合キーでテーブルごとに一意であり、
// 書き込みはINSERTまたは上書きのUPSERTセマンティクスを持つ。
type KeyValueRecord struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt time.Time
}
