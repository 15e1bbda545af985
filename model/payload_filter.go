package model

// KeepOnlyFields returns a shallow copy of m containing only the given
// top-level keys.
func KeepOnlyFields(m map[string]interface{}, fields []string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}

// RemoveFields returns a shallow copy of m with the given top-level keys
// removed.
func RemoveFields(m map[string]interface{}, fields []string) map[string]interface{} {
	drop := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		drop[f] = struct{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, ok := drop[k]; ok {
			continue
		}
		out[k] = v
	}
	return out
}

// ApplySensitiveFilter strips SensitiveKeys from every entity block in the
// payload's data, recursing into nested maps at every depth.
func ApplySensitiveFilter(p *Payload) *Payload {
	filtered := *p
	filtered.Data.Entity = stripSensitive(p.Data.Entity)
	return &filtered
}

func stripSensitive(m map[string]interface{}) map[string]interface{} {
	out := RemoveFields(m, SensitiveKeys)
	for k, v := range out {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = stripSensitive(nested)
		}
	}
	return out
}

// ApplyMinimalFilter reduces the payload to its top-level control fields
// plus data.{id,type,operation}.
func ApplyMinimalFilter(p *Payload) *Payload {
	filtered := &Payload{
		ID:        p.ID,
		Event:     p.Event,
		Timestamp: p.Timestamp,
		Version:   p.Version,
		Source:    p.Source,
		Webhook:   p.Webhook,
		Data: PayloadData{
			ID:        p.Data.ID,
			Type:      p.Data.Type,
			Operation: p.Data.Operation,
		},
	}
	return filtered
}

// ApplyPayloadFilter dispatches to the named filter mode, returning the
// identity payload for "detailed" or an unrecognized mode.
func ApplyPayloadFilter(p *Payload, mode PayloadFilterMode) *Payload {
	switch mode {
	case PayloadFilterSensitive:
		return ApplySensitiveFilter(p)
	case PayloadFilterMinimal:
		return ApplyMinimalFilter(p)
	default:
		return p
	}
}
