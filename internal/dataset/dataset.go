package dataset

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Gender はレコードの性別
type Gender string

const (
	Male   Gender = "MALE"
	Female Gender = "FEMALE"
)

// 生成レコードの既定値
const (
	EntityClass        = "org.infinispan.odata.Person"
	DefaultFirstName   = "John"
	DefaultLastName    = "Smith"
	DefaultAge         = 24
	DefaultPayloadSize = 10000
	KeyPrefix          = "person"
	paddingChar        = "x"
)

// Record はデータセットの1エントリ。フィールド順がそのまま出力順になる
type Record struct {
	EntityClass    string `json:"entityClass"`
	ID             string `json:"id"`
	Gender         Gender `json:"gender"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	DocumentString string `json:"documentString"`
	Age            int    `json:"age"`
}

// Generate は1始まりのindexのレコードを返す。負のpayloadSizeは0として扱う
func Generate(index int, payloadSize int) Record {
	if payloadSize < 0 {
		payloadSize = 0
	}
	return Record{
		EntityClass:    EntityClass,
		ID:             KeyPrefix + strconv.Itoa(index),
		Gender:         Male,
		FirstName:      DefaultFirstName,
		LastName:       DefaultLastName,
		DocumentString: strings.Repeat(paddingChar, payloadSize),
		Age:            DefaultAge,
	}
}

// Serialize はrをUTF-8のJSONにエンコードする
func Serialize(r Record) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// 文字列と整数のみなので失敗しない
	_ = enc.Encode(r)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// Key はindexのキーを返す。suffixでバックエンドを共有するグループを分離する
func Key(index int, suffix string) string {
	key := KeyPrefix + strconv.Itoa(index)
	if suffix != "" {
		key += "-" + suffix
	}
	return key
}

// NormalizeSuffix はホスト名やIPをキーに使えるようドットを取り除く
func NormalizeSuffix(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "")
}

// EntrySize はindexのレコードのシリアライズ後のバイト数を返す
func EntrySize(index int, payloadSize int) int {
	return len(Serialize(Generate(index, payloadSize)))
}

// Footprint はentries件分の合計サイズを見積もる
func Footprint(entries int, payloadSize int) int64 {
	if entries <= 0 {
		return 0
	}
	// IDは桁が増えるごとに1バイト伸びるので最大のものを使う
	return int64(entries) * int64(EntrySize(entries, payloadSize))
}
