// Package scenario は負荷測定の実行単位を提供する。
//
// エンジンはバックエンドのファクトリ、ウォームアップ調整役、エラーカウンタ、
// Clientを組み立て、指定時間または指定操作数だけ測定を行う。
// memoryバックエンドではノードクラスタを起動し、必要ならChaosMonkeyで
// 障害を注入する。
//
// # プリセットシナリオ
//
// - memory: インメモリバックエンド（デフォルト）
// - binary: RESPサーバ
// - text: memcachedテキストプロトコル
// - rest: HTTP RESTエンドポイント
// - odata: ODataエンドポイント
// - search: 外部検索スクリプト
// - chaos: 障害注入ありのインメモリバックエンド
//
// # 使用例
//
//	config, _ := scenario.GetPreset("memory")
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
