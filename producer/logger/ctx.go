package logger

import "sort"

// Ctx holds the structured fields attached to a log entry.
type Ctx map[string]interface{}

// WithCtx merges newCtx over c and returns the result. Neither map is
// modified.
func (c Ctx) WithCtx(newCtx Ctx) Ctx {
	if len(c) == 0 {
		return newCtx
	}

	if len(newCtx) == 0 {
		return c
	}

	ret := make(Ctx, len(c)+len(newCtx))

	for k, v := range c {
		ret[k] = v
	}

	for k, v := range newCtx {
		ret[k] = v
	}

	return ret
}

func (c Ctx) sortedKeys() []string {
	keys := make([]string, 0, len(c))

	for k := range c {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
