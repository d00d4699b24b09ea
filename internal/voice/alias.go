package voice

import (
	"fmt"
	"maps"
	"strings"
)

// CanonicalPrefix marks identifiers the synthesis backend understands as-is.
const CanonicalPrefix = "lucy-voice-"

// FallbackVoice is used when no default character is configured at all.
const FallbackVoice = "lucy-voice-guangdong-f1"

// DefaultCharacter is the configured default when nothing else is set.
const DefaultCharacter = "温柔妹妹"

// AliasTable maps human-readable character names to canonical voice ids.
type AliasTable map[string]string

var builtinAliases = AliasTable{
	"小新":    "lucy-voice-laibixiaoxin",
	"猴哥":    "lucy-voice-houge",
	"四郎":    "lucy-voice-silang",
	"东北老妹儿": "lucy-voice-guangdong-f1",
	"广西大表哥": "lucy-voice-guangxi-m1",
	"妲己":    "lucy-voice-daji",
	"霸道总裁":  "lucy-voice-lizeyan",
	"酥心御姐":  "lucy-voice-suxinjiejie",
	"说书先生":  "lucy-voice-m8",
	"憨憨小弟":  "lucy-voice-male1",
	"憨厚老哥":  "lucy-voice-male3",
	"吕布":    "lucy-voice-lvbu",
	"元气少女":  "lucy-voice-xueling",
	"文艺少女":  "lucy-voice-f37",
	"磁性大叔":  "lucy-voice-male2",
	"邻家小妹":  "lucy-voice-female1",
	"低沉男声":  "lucy-voice-m14",
	"傲娇少女":  "lucy-voice-f38",
	"爹系男友":  "lucy-voice-m101",
	"暖心姐姐":  "lucy-voice-female2",
	"温柔妹妹":  "lucy-voice-f36",
	"书香少女":  "lucy-voice-f34",
}

// DefaultAliases returns a fresh copy of the built-in alias table.
func DefaultAliases() AliasTable {
	return maps.Clone(builtinAliases)
}

// Lookup returns the canonical id for name.
func (t AliasTable) Lookup(name string) (string, bool) {
	id, ok := t[name]
	return id, ok
}

// ParseAliases reads a "name:id,name:id" list. Entries are trimmed; empty
// entries are skipped.
func ParseAliases(s string) (AliasTable, error) {
	out := AliasTable{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, id, ok := strings.Cut(entry, ":")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, fmt.Errorf("invalid alias entry %q", entry)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("duplicate alias %q", name)
		}
		out[name] = id
	}
	return out, nil
}
