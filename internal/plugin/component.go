// Package plugin implements the AI voice components: a keyword-activated
// action, the /voice command, and the plugin that routes chat events to them.
package plugin

import (
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"aivoice/internal/host"
)

const (
	PluginName    = "ai_voice_plugin"
	PluginVersion = "1.0.0"

	// CommandVoiceSend is the host command that performs the synthesis.
	CommandVoiceSend = "AI_VOICE_SEND"
)

var (
	ErrMissingText      = errors.New("missing text")
	ErrNotGroup         = errors.New("voice is only available in group chats")
	ErrDispatchFailed   = errors.New("voice command dispatch failed")
	ErrUnknownComponent = errors.New("unknown component")
)

// User-facing replies.
const (
	msgGroupOnly            = "AI语音功能仅支持群聊使用。"
	msgActionMissingText    = "生成语音失败：需要提供要说的话。"
	msgCommandMissingText   = "❌ 请输入要转换为语音的文本内容"
	msgDispatchFailed       = "AI语音命令发送失败"
	msgActionDispatchError  = "执行AI语音动作时出错: %v"
	msgCommandDispatchError = "执行AI语音命令时出错: %v"
	msgSent                 = "成功发送AI语音消息：\"%s\" (音色：%s)"
)

type Kind string

const (
	KindAction  Kind = "action"
	KindCommand Kind = "command"
)

// ComponentInfo is what gets registered with the host.
type ComponentInfo struct {
	Name        string            `json:"name"`
	Kind        Kind              `json:"kind"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Require     []string          `json:"require,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Pattern     string            `json:"pattern,omitempty"`
	Examples    []string          `json:"examples,omitempty"`
	Intercept   bool              `json:"intercept,omitempty"`
}

// Activation is a keyword trigger.
type Activation struct {
	Keywords      []string
	CaseSensitive bool
}

func (a Activation) Matches(text string) bool {
	if !a.CaseSensitive {
		text = strings.ToLower(text)
	}
	for _, kw := range a.Keywords {
		if kw == "" {
			continue
		}
		if !a.CaseSensitive {
			kw = strings.ToLower(kw)
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func voiceArgs(text, character string) map[string]any {
	args := map[string]any{"text": text}
	if character != "" {
		args["character"] = character
	}
	return args
}

func logPrefix(component string, stream host.ChatStream) *log.Logger {
	return log.With("log_prefix", fmt.Sprintf("[%s]", PluginName), "component", component, "stream", stream.String())
}
