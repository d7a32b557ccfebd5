package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

// 这些键只描述消息的结构，不携带可读文本
var structuralKeys = map[string]struct{}{
	"contentType":     {},
	"actionType":      {},
	"iosActionStyle":  {},
	"showGuideAlways": {},
	"type":            {},
	"version":         {},
}

// 对象里优先尝试的文本键，顺序即优先级
var preferredTextKeys = []string{"text", "content", "title", "summary", "desc", "description", "value"}

// ExtractText 从多变的 mtop 消息体里提取可读文本。
// 历史接口版本的消息内容可能是纯文本、嵌套 JSON 字符串、textCard
// 结构或任意层级的对象/数组，这里统一拍平成换行分隔的纯文本；
// 提取不到任何文本时返回空串，绝不把结构残渣当内容返回。
func ExtractText(v gjson.Result) string {
	if !v.Exists() {
		return ""
	}

	switch v.Type {
	case gjson.Null, gjson.True, gjson.False, gjson.Number:
		return ""
	case gjson.String:
		text := strings.TrimSpace(v.String())
		if text == "" {
			return ""
		}
		// 嵌套的 JSON 字符串先解开再提取
		if (strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")) && gjson.Valid(text) {
			return ExtractText(gjson.Parse(text))
		}
		return text
	}

	if v.IsArray() {
		var parts []string
		v.ForEach(func(_, item gjson.Result) bool {
			if p := ExtractText(item); p != "" {
				parts = append(parts, p)
			}
			return true
		})
		return strings.Join(parts, "\n")
	}

	if v.IsObject() {
		if tc := v.Get("textCard"); tc.IsObject() {
			if out := joinParts(ExtractText(tc.Get("title")), ExtractText(tc.Get("content"))); out != "" {
				return out
			}
		}

		if v.Get("title").Exists() || v.Get("content").Exists() {
			if out := joinParts(ExtractText(v.Get("title")), ExtractText(v.Get("content"))); out != "" {
				return out
			}
		}

		for _, key := range preferredTextKeys {
			if out := ExtractText(v.Get(key)); out != "" {
				return out
			}
		}

		var out string
		v.ForEach(func(key, val gjson.Result) bool {
			if _, skip := structuralKeys[key.String()]; skip {
				return true
			}
			if t := ExtractText(val); t != "" {
				out = t
				return false
			}
			return true
		})
		return out
	}

	return ""
}

func joinParts(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
