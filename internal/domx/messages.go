package domx

import (
	"sort"
	"strings"

	"idlemsg/internal/normalize"
	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
)

// messageSignature 去重签名：同一条消息可能被两个选择器各匹配一次
type messageSignature struct {
	sender   string
	content  string
	fromMe   bool
	unixTime int64
}

// Messages 从消息列表 DOM 提取最近的消息记录
func (e *Extractor) Messages(limit int) []model.Message {
	items, err := e.sess.QuerySelectorAll(msgItemsPrimary)
	if err != nil || len(items) == 0 {
		items, err = e.sess.QuerySelectorAll(msgItemsFallback)
		if err != nil {
			e.log.Debug("查询消息列表失败", "error", err)
			return nil
		}
	}

	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}

	seen := make(map[messageSignature]struct{})
	var out []model.Message
	for _, item := range items {
		msg, ok := e.parseMessage(item)
		if !ok {
			continue
		}
		sig := messageSignature{
			sender:  strings.TrimSpace(msg.FromUserName),
			content: strings.TrimSpace(msg.Content),
			fromMe:  msg.IsFromMe,
		}
		if msg.Timestamp != nil {
			sig.unixTime = msg.Timestamp.Unix()
		}
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, msg)
	}
	return out
}

// parseMessage 解析单条消息。内容优先从结构化选择器里取，
// 按（长度、行数）取信息量最大的候选；全部失败时回退到整块
// 文本的位置启发式。无内容的元素直接丢弃。
func (e *Extractor) parseMessage(item browser.ElementHandle) (model.Message, bool) {
	msg := model.Message{Source: model.SourceDOM, MessageType: "text"}

	var parts []string
	for _, selector := range messageContentSelectors {
		els, err := item.QuerySelectorAll(selector)
		if err != nil {
			continue
		}
		for _, el := range els {
			text, err := el.Text()
			if err != nil {
				continue
			}
			cleaned := cleanContent(text)
			if cleaned != "" && !contains(parts, cleaned) {
				parts = append(parts, cleaned)
			}
		}
	}

	if len(parts) > 0 {
		sort.SliceStable(parts, func(i, j int) bool {
			if len(parts[i]) != len(parts[j]) {
				return len(parts[i]) > len(parts[j])
			}
			return strings.Count(parts[i], "\n") > strings.Count(parts[j], "\n")
		})
		msg.Content = parts[0]
	}

	rawText, err := item.Text()
	if err != nil {
		return model.Message{}, false
	}
	lines := splitLines(rawText)

	if msg.Content == "" {
		var filtered []string
		for _, line := range lines {
			if _, status := statusLines[line]; status {
				continue
			}
			if _, ok := normalize.ParseTimeText(line, e.now()); ok {
				continue
			}
			filtered = append(filtered, line)
		}
		if len(filtered) > 1 {
			msg.Content = strings.TrimSpace(strings.Join(filtered[1:], "\n"))
		} else if len(filtered) == 1 {
			msg.Content = filtered[0]
		}
	}
	if msg.Content == "" {
		return model.Message{}, false
	}

	// 右侧气泡和已读回执只出现在自己发出的消息上
	if els, err := item.QuerySelectorAll("[class*='msg-text-right'], [class*='read-status-text']"); err == nil && len(els) > 0 {
		msg.IsFromMe = true
	}

	// 左侧消息首行通常是用户名
	if len(lines) > 0 {
		first := lines[0]
		if _, status := statusLines[first]; !status && !strings.Contains(msg.Content, first) {
			msg.FromUserName = first
		}
	}

	for _, line := range lines {
		if t, ok := normalize.ParseTimeText(line, e.now()); ok {
			msg.Timestamp = &t
			break
		}
	}

	if els, err := item.QuerySelectorAll("[class*='read-status-text']"); err == nil && len(els) > 0 {
		msg.IsRead = true
	}

	return msg, true
}

// cleanContent 去掉已读/未读状态行并压成整洁文本
func cleanContent(text string) string {
	var kept []string
	for _, line := range splitLines(text) {
		if _, status := statusLines[line]; status {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
