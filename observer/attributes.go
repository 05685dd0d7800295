package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for Bot API spans and metrics.
var (
	AttrMethod    = attribute.Key("telegram.method")
	AttrMultipart = attribute.Key("telegram.multipart")
	AttrBodySize  = attribute.Key("telegram.request.size")
	AttrStatus    = attribute.Key("telegram.status")
	AttrErrorCode = attribute.Key("telegram.error_code")

	AttrUpdateKind  = attribute.Key("telegram.update.kind")
	AttrPollTimeout = attribute.Key("telegram.poll.timeout")
	AttrPollUpdates = attribute.Key("telegram.poll.updates")

	AttrFilePath = attribute.Key("telegram.file.path")
)

// Call statuses recorded in AttrStatus.
const (
	StatusOK           = "ok"
	StatusAPIError     = "api_error"
	StatusOutOfService = "out_of_service"
	StatusNetworkError = "network_error"
)
