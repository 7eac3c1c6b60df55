package logger

import (
	"strings"
)

// Config resolves the logging Level for a namespace.
type Config interface {
	LevelForNamespace(namespace string) Level
}

// ConfigMap maps namespaces to levels. The empty namespace configures the
// root logger.
type ConfigMap map[string]Level

// NewConfigMapFromString parses a comma separated list of namespace:level
// pairs, e.g. "coordinator:debug,sender:mic:trace,warn". An entry without a
// level suffix enables info. An entry that is only a level name configures
// the root logger.
func NewConfigMapFromString(str string) Config {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}

	ret := ConfigMap{}

	for _, entry := range strings.Split(str, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if level, ok := LevelFromString(entry); ok {
			ret[""] = level

			continue
		}

		level := LevelInfo
		ns := entry

		if index := strings.LastIndex(entry, ":"); index > -1 {
			if cfgLevel, ok := LevelFromString(entry[index+1:]); ok {
				level = cfgLevel
				ns = entry[:index]
			}
		}

		ret[ns] = level
	}

	return ret
}

// LevelForNamespace implements Config. The most specific configured prefix
// of namespace wins. When no prefix matches, the last namespace segment is
// tried before falling back to the root level.
func (c ConfigMap) LevelForNamespace(namespace string) Level {
	for prefix := namespace; prefix != ""; {
		if level, ok := c[prefix]; ok {
			return level
		}

		index := strings.LastIndex(prefix, ":")
		if index < 0 {
			break
		}

		prefix = prefix[:index]
	}

	if index := strings.LastIndex(namespace, ":"); index > -1 {
		if level, ok := c[namespace[index+1:]]; ok {
			return level
		}
	}

	return c[""]
}
