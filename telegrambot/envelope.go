package telegrambot

import (
	"bytes"
	"encoding/json"
	"errors"
)

// envelope is the uniform wrapper around every Bot API response.
type envelope struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}

// responseParameters explains why a request failed.
// See https://core.telegram.org/bots/api#responseparameters
type responseParameters struct {
	MigrateToChatID *int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      *int   `json:"retry_after,omitempty"`
}

var errMissingResult = errors.New(`"ok" is true but "result" is missing`)

// decodeEnvelope turns a raw response body into the method's result or one of
// *OutOfServiceError, *ParseError, *RequestError.
func decodeEnvelope[T any](method string, body []byte) (T, error) {
	var zero T

	// Anything that is not a JSON object is a maintenance page, a proxy error
	// or an empty body: the API is not answering.
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return zero, &OutOfServiceError{Method: method, Response: body}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return zero, &ParseError{Method: method, Response: body, Err: err}
	}

	if !env.OK {
		reqErr := &RequestError{
			Method:      method,
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if env.Parameters != nil {
			reqErr.MigrateToChatID = env.Parameters.MigrateToChatID
			reqErr.RetryAfter = env.Parameters.RetryAfter
		}
		return zero, reqErr
	}

	if len(env.Result) == 0 {
		return zero, &ParseError{Method: method, Response: body, Err: errMissingResult}
	}

	var result T
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return zero, &ParseError{Method: method, Response: body, Err: err}
	}
	return result, nil
}
