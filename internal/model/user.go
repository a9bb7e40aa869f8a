// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントでログインしたサービス利用ユーザーを表す。
// IDにはGoogleのsubject ID（sub）をそのまま使用する。
// 初回ログイン時に作成され、以降のログインごとにUPSERTで更新される。
// このシステムからユーザーを削除することはない。
type User struct {
	ID        string
	Email     string
	Name      string
	Picture   string
	CreatedAt time.Time
	LastLogin time.Time
}
