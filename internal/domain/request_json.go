package domain

import "encoding/json"

// MarshalJSON emits only the fields that are known, plus extras, so clients
// can tell "not arrived yet" apart from zero values.
func (r *Request) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.known)+len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[FieldID] = r.ID
	for _, f := range fieldOrder {
		if !r.known[f] {
			continue
		}
		out[f] = r.fieldValue(f)
	}
	if r.Has("endedMillis") {
		out["endedMillis"] = r.EndedMillis
	}
	if r.known[FieldStartedMillis] {
		out["startedDeltaMillis"] = r.StartedDeltaMillis
	}
	out["category"] = r.category.String()
	return json.Marshal(out)
}

func (r *Request) fieldValue(f string) any {
	switch f {
	case FieldStartedMillis:
		return r.StartedMillis
	case FieldTotalTime:
		return r.TotalTime
	case FieldMethod:
		return r.Method
	case FieldURL:
		return r.URL
	case FieldMimeType:
		return r.MimeType
	case FieldStatus:
		return r.Status
	case FieldStatusText:
		return r.StatusText
	case FieldContentSize:
		return r.ContentSize
	case FieldTransferredSize:
		return r.TransferredSize
	case FieldIsXHR:
		return r.IsXHR
	case FieldFromCache:
		return r.FromCache
	}
	return nil
}
