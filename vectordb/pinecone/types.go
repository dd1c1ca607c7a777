package pinecone

import "github.com/viant/vecflow/vectordb"

const (
	opDescribeIndex = "describe index"
	opUpsert        = "upsert"
	opDescribeStats = "describe index stats"
	opQuery         = "query"
)

// Index states reported by the control plane.
const (
	StateInitializing = "Initializing"
	StateReady        = "Ready"
)

// IndexModel is the control-plane index payload.
type IndexModel struct {
	Name      string      `json:"name"`
	Dimension int         `json:"dimension"`
	Metric    string      `json:"metric"`
	Host      string      `json:"host"`
	Status    IndexStatus `json:"status"`
}

// IndexStatus reports index readiness.
type IndexStatus struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// Description converts the payload to an IndexDescription.
func (m *IndexModel) Description() *vectordb.IndexDescription {
	return &vectordb.IndexDescription{
		Name:      m.Name,
		Dimension: m.Dimension,
		Metric:    vectordb.NormalizeMetric(m.Metric),
		Host:      m.Host,
		Ready:     m.Status.Ready,
		State:     m.Status.State,
	}
}

// NewIndexModel converts an IndexDescription to the wire payload.
func NewIndexModel(desc *vectordb.IndexDescription) *IndexModel {
	return &IndexModel{
		Name:      desc.Name,
		Dimension: desc.Dimension,
		Metric:    desc.Metric,
		Host:      desc.Host,
		Status:    IndexStatus{Ready: desc.Ready, State: desc.State},
	}
}

// UpsertRequest is the data-plane upsert payload.
type UpsertRequest struct {
	Vectors   []vectordb.Vector `json:"vectors"`
	Namespace string            `json:"namespace,omitempty"`
}

// UpsertResponse reports the number of vectors written.
type UpsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// ErrorResponse is the error payload returned by the service.
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Status int         `json:"status"`
}

// ErrorDetail carries an error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
