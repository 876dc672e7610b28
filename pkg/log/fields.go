package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Chat
	FieldStreamID  = "stream_id"
	FieldUserID    = "user_id"
	FieldMessageID = "message_id"
	FieldPlatform  = "platform"

	// Pagination
	FieldDate     = "date"
	FieldBeforeID = "before_id"
	FieldLimit    = "limit"

	// Service
	FieldService = "service"

	// Pipeline
	FieldTopic     = "topic"
	FieldChannel   = "channel"
	FieldPartition = "partition"
	FieldOffset    = "offset"
)
