package telegrambot

import (
	"context"
	"errors"
)

// Call invokes a Bot API method with an encoded payload and decodes the
// result into T. Errors are *NetworkError, *OutOfServiceError, *ParseError
// or *RequestError.
//
// When ctx has no deadline the client's call timeout applies.
func Call[T any](ctx context.Context, c *Client, method string, p Payload) (T, error) {
	if _, ok := ctx.Deadline(); !ok && c.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
		defer cancel()
	}

	c.logger.Debug("calling bot API",
		"method", method,
		"multipart", p.IsMultipart(),
		"size", len(p.Body),
	)

	body, err := c.transport.Send(ctx, Request{
		Token:    c.token,
		Method:   method,
		Body:     p.Body,
		Boundary: p.Boundary,
	})
	if err != nil {
		var zero T
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			err = &NetworkError{Method: method, Err: err}
		}
		return zero, err
	}
	return decodeEnvelope[T](method, body)
}

// CallMethod validates and encodes req, then calls method. A nil req sends
// an empty JSON object.
func CallMethod[T any](ctx context.Context, c *Client, method string, req any) (T, error) {
	p, err := NewPayload(method, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Call[T](ctx, c, method, p)
}
