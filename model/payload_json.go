package model

import "encoding/json"

// MarshalJSON flattens Entity's keys alongside PayloadData's named fields,
// producing a single "data" object:
// {id,type,operation,collection,namespace,timestamp,<entityBlock>}.
func (d PayloadData) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"id":         d.ID,
		"type":       d.Type,
		"operation":  d.Operation,
		"collection": d.Collection,
		"timestamp":  d.Timestamp,
	}
	if d.Namespace != "" {
		out["namespace"] = d.Namespace
	}
	for k, v := range d.Entity {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs PayloadData from its flattened wire form,
// routing the named control fields back into their struct fields and
// everything else into Entity.
func (d *PayloadData) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Entity = make(map[string]interface{})
	for k, v := range raw {
		switch k {
		case "id":
			d.ID, _ = v.(string)
		case "type":
			d.Type, _ = v.(string)
		case "operation":
			d.Operation, _ = v.(string)
		case "collection":
			d.Collection, _ = v.(string)
		case "namespace":
			d.Namespace, _ = v.(string)
		case "timestamp":
			if f, ok := v.(float64); ok {
				d.Timestamp = int64(f)
			}
		default:
			d.Entity[k] = v
		}
	}
	return nil
}
