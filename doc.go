// Package tunesync は音楽プレイヤーWebアプリのバックエンドゲートウェイ。
// Google OAuth 2.0によるログインと、ユーザーごとの再生状態・お気に入りの
// キーバリュー同期ストアを提供する。
package tunesync
