package model

// Operation is the kind of change a Mutation Record describes.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// UpdateDescription narrows an update mutation to the fields that actually
// changed, mirroring the native change-stream update description.
type UpdateDescription struct {
	UpdatedFields   map[string]interface{} `json:"updatedFields,omitempty"`
	RemovedFields   []string                `json:"removedFields,omitempty"`
	TruncatedArrays []TruncatedArray        `json:"truncatedArrays,omitempty"`
}

// TruncatedArray records that an array field was truncated rather than
// fully replaced, per the native change-stream representation.
type TruncatedArray struct {
	Field   string `json:"field"`
	NewSize int    `json:"newSize"`
}

// HasField reports whether the update description touched the given field,
// either by setting or removing it. The Classifier uses this to derive
// status_changed/assigned event types.
func (u *UpdateDescription) HasField(field string) bool {
	if u == nil {
		return false
	}
	if _, ok := u.UpdatedFields[field]; ok {
		return true
	}
	for _, removed := range u.RemovedFields {
		if removed == field {
			return true
		}
	}
	return false
}

// MutationRecord is one entry consumed from the Change Source.
type MutationRecord struct {
	ResumeToken           string
	ClusterTimestampMillis int64
	Collection            string
	Operation              Operation
	DocumentKey            string
	PostImage              map[string]interface{}
	PreImage               map[string]interface{}
	UpdateDescription      *UpdateDescription
}

// Image returns the document state most relevant for routing filters: the
// post-image for insert/update, the pre-image for delete.
func (m *MutationRecord) Image() map[string]interface{} {
	if m.Operation == OperationDelete {
		return m.PreImage
	}
	return m.PostImage
}
