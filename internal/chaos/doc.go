// Package chaos はメモリバックエンドへの障害注入機能を提供する。
//
// ChaosMonkeyはクラスタ内のノードに対して様々な障害を注入し、
// ドライバのリトライとエラー集計の挙動を確認するために使用される。
// 攻撃したノードはRestoreAfter経過後、またはStop時に復旧する。
//
// # 障害タイプ
//
// - Kill: ノードを停止（データは保持される）
// - Suspend: ノードを一時停止（リクエストを受け付けなくなる）
// - Delay: ノードのレスポンスに遅延を注入
//
// # 使用例
//
//	config := chaos.DefaultConfig()
//	config.Interval = 3 * time.Second
//	config.TargetCount = 2
//
//	monkey := chaos.New(cluster, config)
//	monkey.Start(ctx)
//	defer monkey.Stop()
package chaos
