package codecs

import (
	"sort"
	"strings"
)

type fmtp map[string]string

func parseFmtp(line string) fmtp {
	f := fmtp{}

	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))

		value := ""
		if len(kv) == 2 {
			value = strings.TrimSpace(kv[1])
		}

		f[key] = value
	}

	return f
}

// fmtpConsist returns false when a key present in both has different values.
func fmtpConsist(a, b fmtp) bool {
	for k, v := range a {
		if vb, ok := b[k]; ok && !strings.EqualFold(vb, v) {
			return false
		}
	}

	return true
}

func (f fmtp) String() string {
	keys := make([]string, 0, len(f))

	for k := range f {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))

	for _, k := range keys {
		if f[k] == "" {
			parts = append(parts, k)
		} else {
			parts = append(parts, k+"="+f[k])
		}
	}

	return strings.Join(parts, ";")
}
